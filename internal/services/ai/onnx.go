package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
)

var (
	ortOnce sync.Once
	ortErr  error
	ortUp   bool
	ortMu   sync.Mutex
)

// initRuntime loads the onnxruntime shared library once per process.
func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortErr = ort.InitializeEnvironment()
		if ortErr == nil {
			ortMu.Lock()
			ortUp = true
			ortMu.Unlock()
		}
	})
	return ortErr
}

// ShutdownRuntime destroys the onnxruntime environment if it was started.
func ShutdownRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if !ortUp {
		return nil
	}
	ortUp = false
	return ort.DestroyEnvironment()
}

// ONNXDetector runs a YOLO export through ONNX Runtime.
type ONNXDetector struct {
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	size     int
	channels int
	anchors  int
	params   Params
	logger   *logger.Logger
}

// NewONNXDetector creates a session with fixed input and output tensors.
// Static dimensions declared by the model take precedence over Params.
func NewONNXDetector(modelPath string, p Params, log *logger.Logger) (*ONNXDetector, error) {
	log = logger.OrNop(log)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperr.Unavailable("load model", err)
	}
	if err := initRuntime(p.RuntimeLib); err != nil {
		return nil, apperr.Unavailable("init onnxruntime", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, apperr.Unavailable("load model", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, apperr.Unavailable("load model", fmt.Errorf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs)))
	}

	size := p.ImageSize
	if d := inputs[0].Dimensions; len(d) == 4 && d[2] > 0 && d[3] > 0 {
		if int(d[2]) != size {
			log.Warning("model %s has a fixed input of %d, ignoring requested size %d", modelPath, d[2], size)
		}
		size = int(d[2])
	}
	classes := p.Classes
	if classes < 1 {
		classes = 1
	}
	channels, anchors := 4+classes, anchorCount(size)
	if d := outputs[0].Dimensions; len(d) == 3 && d[1] > 0 && d[2] > 0 {
		channels, anchors = int(d[1]), int(d[2])
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, apperr.Unavailable("load model", fmt.Errorf("error creating session options: %w", err))
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	if p.Device == "cuda" {
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, apperr.Unavailable("load model", fmt.Errorf("error creating CUDA options: %w", err))
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return nil, apperr.Unavailable("load model", fmt.Errorf("error enabling CUDA: %w", err))
		}
	}
	if p.Precision == models.PrecisionHalf {
		log.Info("onnxruntime backend runs the model at its exported precision")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, apperr.Unavailable("load model", fmt.Errorf("error creating input tensor: %w", err))
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(channels), int64(anchors)))
	if err != nil {
		inputTensor.Destroy()
		return nil, apperr.Unavailable("load model", fmt.Errorf("error creating output tensor: %w", err))
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, apperr.Unavailable("load model", fmt.Errorf("error creating session: %w", err))
	}

	log.Info("ONNX session for %s ready (input=%d, output=%dx%d, device=%s)", modelPath, size, channels, anchors, p.Device)
	return &ONNXDetector{
		session:  session,
		input:    inputTensor,
		output:   outputTensor,
		size:     size,
		channels: channels,
		anchors:  anchors,
		params:   p,
		logger:   log,
	}, nil
}

// Detect letterboxes the frame into the input tensor and runs the session.
func (d *ONNXDetector) Detect(frame gocv.Mat) ([]models.Box, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	lb := newLetterbox(frame.Cols(), frame.Rows(), d.size)
	d.prepareInput(img, lb)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	boxes, err := decode(d.output.GetData(), d.channels, d.anchors, lb, d.params.Confidence)
	if err != nil {
		return nil, err
	}
	return nms(boxes, d.params.IoU), nil
}

// prepareInput writes the letterboxed RGB image as a normalized CHW tensor.
func (d *ONNXDetector) prepareInput(img image.Image, lb letterbox) {
	resized := imaging.Resize(img, lb.width, lb.height, imaging.Linear)
	canvas := imaging.New(d.size, d.size, color.NRGBA{R: padValue, G: padValue, B: padValue, A: 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY))

	fillCHW(d.input.GetData(), canvas, d.size)
}

// fillCHW copies an NRGBA canvas into planar RGB scaled to [0,1].
func fillCHW(dst []float32, canvas *image.NRGBA, size int) {
	plane := size * size
	for y := 0; y < size; y++ {
		row := y * size
		for x := 0; x < size; x++ {
			off := canvas.PixOffset(x, y)
			i := row + x
			dst[i] = float32(canvas.Pix[off]) / 255.0
			dst[plane+i] = float32(canvas.Pix[off+1]) / 255.0
			dst[2*plane+i] = float32(canvas.Pix[off+2]) / 255.0
		}
	}
}

// Close destroys the session and its tensors.
func (d *ONNXDetector) Close() error {
	err := d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	return err
}
