package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
)

// Backends accepted by NewDetector.
const (
	BackendOpenCV      = "opencv"
	BackendONNXRuntime = "onnxruntime"
)

// Detector finds faces in a single BGR frame. Returned boxes are in frame
// pixels and may extend past the frame edges.
type Detector interface {
	Detect(frame gocv.Mat) ([]models.Box, error)
	Close() error
}

// Params are the inference settings of one run.
type Params struct {
	Confidence float64
	IoU        float64
	ImageSize  int
	Precision  models.Precision
	Device     string // cpu or cuda
	Classes    int
	RuntimeLib string // onnxruntime shared library, empty for the default
}

// halfPrecision reports whether FP16 can be used. It is only honoured on CUDA.
func (p Params) halfPrecision() bool {
	return p.Precision == models.PrecisionHalf && p.Device == "cuda"
}

// NewDetector loads modelPath with the requested backend.
func NewDetector(backend, modelPath string, p Params, log *logger.Logger) (Detector, error) {
	log = logger.OrNop(log)
	if p.Precision == models.PrecisionHalf && p.Device != "cuda" {
		log.Info("half precision requested on %s, using full precision", p.Device)
	}
	switch backend {
	case BackendOpenCV, "":
		return NewDNNDetector(modelPath, p, log)
	case BackendONNXRuntime:
		return NewONNXDetector(modelPath, p, log)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", backend)
	}
}

// DNNDetector runs a YOLO export through the OpenCV DNN module.
type DNNDetector struct {
	net    gocv.Net
	params Params
	padded gocv.Mat
	logger *logger.Logger
}

// NewDNNDetector loads the network and selects the CPU or CUDA target.
func NewDNNDetector(modelPath string, p Params, log *logger.Logger) (*DNNDetector, error) {
	log = logger.OrNop(log)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperr.Unavailable("load model", err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		net.Close()
		return nil, apperr.Unavailable("load model", fmt.Errorf("failed to load network from %s", modelPath))
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if p.Device == "cuda" {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
		if p.halfPrecision() {
			target = gocv.NetTargetCUDAFP16
		}
	}
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, apperr.Unavailable("load model", fmt.Errorf("failed to set preferable backend or target"))
	}

	log.Info("Detection network %s initialized (device=%s, size=%d)", modelPath, p.Device, p.ImageSize)
	return &DNNDetector{net: net, params: p, padded: gocv.NewMat(), logger: log}, nil
}

// Detect letterboxes the frame, runs a forward pass and decodes the head.
func (d *DNNDetector) Detect(frame gocv.Mat) ([]models.Box, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	size := d.params.ImageSize
	lb := newLetterbox(frame.Cols(), frame.Rows(), size)

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(frame, &resized, image.Pt(lb.width, lb.height), 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	grey := color.RGBA{R: padValue, G: padValue, B: padValue, A: 0}
	if err := gocv.CopyMakeBorder(resized, &d.padded,
		lb.padY, size-lb.height-lb.padY, lb.padX, size-lb.width-lb.padX,
		gocv.BorderConstant, grey); err != nil {
		return nil, fmt.Errorf("letterbox: %w", err)
	}

	blob := gocv.BlobFromImage(d.padded, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output rank %d", len(dims))
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	boxes, err := decode(data, dims[1], dims[2], lb, d.params.Confidence)
	if err != nil {
		return nil, err
	}
	return nms(boxes, d.params.IoU), nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.padded.Close()
	return d.net.Close()
}
