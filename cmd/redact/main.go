// Command redact blurs faces in one video file without starting the server.
// Ctrl+C stops the run at the next frame and keeps what was written.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autonexit/FaceShield/internal/config"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/ai"
	"github.com/autonexit/FaceShield/internal/services/metrics"
	"github.com/autonexit/FaceShield/internal/services/progress"
	"github.com/autonexit/FaceShield/internal/services/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	d := cfg.Defaults

	input := flag.String("input", "", "Input video")
	output := flag.String("output", d.OutputPath, "Output video (.mp4 or .avi)")
	model := flag.String("model", d.ModelPath, "YOLO face model (ONNX)")
	confidence := flag.Float64("conf", d.Confidence, "Confidence threshold (0,1)")
	iou := flag.Float64("iou", d.IoU, "NMS IoU threshold (0,1)")
	imgsz := flag.Int("imgsz", d.ImageSize, "Inference size, rounded up to a multiple of 32")
	kernel := flag.Int("blur", d.BlurKernel, "Gaussian kernel size, made odd")
	precision := flag.String("precision", d.Precision, "full or half (half only on CUDA)")
	preview := flag.Bool("preview", false, "Show a preview window; press q to stop")
	backend := flag.String("backend", cfg.DetectorBackend, "opencv or onnxruntime")
	device := flag.String("device", cfg.Device, "cpu or cuda")
	flag.Parse()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := models.JobConfig{
		InputPath:  *input,
		ModelPath:  *model,
		OutputPath: *output,
		Confidence: *confidence,
		IoU:        *iou,
		ImageSize:  *imgsz,
		BlurKernel: *kernel,
		Precision:  models.Precision(*precision),
		Preview:    *preview,
	}

	outcomes := make(chan session.Outcome, 1)
	ctrl := session.NewController(
		&session.FileOpener{
			Backend:      *backend,
			Device:       *device,
			Classes:      cfg.ModelClasses,
			RuntimeLib:   cfg.ONNXRuntimeLib,
			LocalPreview: true,
			Logger:       log.Named("opener"),
		},
		session.WithObserver(session.ObserverFuncs{
			Progress: func(_ string, s progress.Snapshot) error {
				fmt.Fprintf(os.Stderr, "\r%6d/%-6d  %s  ", s.Processed, s.Total, s)
				return nil
			},
			Terminal: func(o session.Outcome) error {
				outcomes <- o
				return nil
			},
		}),
		session.WithMetrics(metrics.NewCollector(prometheus.NewRegistry())),
		session.WithLogger(log.Named("session")),
		session.WithContext(ctx),
	)
	defer ai.ShutdownRuntime()

	if _, err := ctrl.Start(job); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	o := <-outcomes
	fmt.Fprintln(os.Stderr)
	switch o.Status {
	case models.RunCompleted:
		fmt.Printf("✅ Done: %s (%d frames, %d faces blurred)\n", o.OutputPath, o.Stats.Frames, o.Stats.BoxesRedacted)
		return 0
	case models.RunStopped:
		fmt.Printf("⏹  Stopped: %s (%d frames written)\n", o.OutputPath, o.Stats.Frames)
		return 130
	default:
		fmt.Printf("❌ Failed: %v\n", o.Err)
		return 1
	}
}
