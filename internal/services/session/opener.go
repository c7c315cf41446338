package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/ai"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/video"
)

// PreviewFactory creates a preview sink for one run.
type PreviewFactory func(runID string, meta video.Metadata) pipeline.PreviewSink

// FileOpener opens the input video, loads the detector and creates the
// encoder for a run.
type FileOpener struct {
	Backend    string
	Device     string
	Classes    int
	RuntimeLib string

	// LocalPreview shows frames in a native window when the job asks for a
	// preview. Remote, when set, adds a preview sink for remote viewers.
	LocalPreview bool
	Remote       PreviewFactory
	// Samples, when set, is attached to every run whether or not the job
	// asks for a preview.
	Samples PreviewFactory

	Logger *logger.Logger
}

// Open acquires every resource of the run, releasing the ones already
// opened if a later one fails.
func (o *FileOpener) Open(ctx context.Context, runID string, job models.JobConfig) (*Resources, error) {
	log := logger.OrNop(o.Logger)

	reader, err := video.Open(job.InputPath)
	if err != nil {
		return nil, err
	}
	meta := reader.Metadata()
	log.Info("run %s: input %dx%d at %.2f fps, %d frames", runID, meta.Width, meta.Height, meta.FPS, meta.FrameCount)

	if err := ctx.Err(); err != nil {
		reader.Close()
		return nil, err
	}

	detector, err := ai.NewDetector(o.Backend, job.ModelPath, ai.Params{
		Confidence: job.Confidence,
		IoU:        job.IoU,
		ImageSize:  job.ImageSize,
		Precision:  job.Precision,
		Device:     o.Device,
		Classes:    o.Classes,
		RuntimeLib: o.RuntimeLib,
	}, log.Named("detector"))
	if err != nil {
		reader.Close()
		return nil, err
	}

	writer, err := video.NewWriter(job.OutputPath, meta)
	if err != nil {
		detector.Close()
		reader.Close()
		return nil, err
	}
	log.Info("run %s: writing %s with %s", runID, job.OutputPath, video.CodecFor(job.OutputPath))

	res := &Resources{
		Source:  ai.NewSource(reader, detector),
		Sink:    writer,
		Total:   meta.FrameCount,
		Backend: o.Backend,
	}

	var previews pipeline.Previews
	if job.Preview && o.LocalPreview {
		previews = append(previews, video.NewWindow(fmt.Sprintf("FaceShield - %s", filepath.Base(job.InputPath))))
	}
	if job.Preview && o.Remote != nil {
		previews = append(previews, o.Remote(runID, meta))
	}
	if o.Samples != nil {
		previews = append(previews, o.Samples(runID, meta))
	}
	if len(previews) > 0 {
		res.Preview = previews
	}
	return res, nil
}
