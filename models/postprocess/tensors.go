package postprocess

import (
	"github.com/nvr-ai/go-predict/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// keypointStride is the number of values per keypoint: x, y, confidence.
const keypointStride = 3

// maskThreshold is the probability above which a mask pixel belongs to its instance.
const maskThreshold = 0.5

// dense wraps a flat engine buffer in a tensor of the given shape.
func dense(data []float32, dims ...int) (*tensor.Dense, error) {
	shape := tensor.Shape(dims)
	for _, d := range dims {
		if d <= 0 {
			return nil, errors.Wrapf(ErrMalformedOutput, "non-positive dimension in shape %v", dims)
		}
	}
	if shape.TotalSize() != len(data) {
		return nil, errors.Wrapf(ErrMalformedOutput, "%d values do not fill shape %v", len(data), dims)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}

// instance returns the view of the i-th entry along the leading axis.
func instance(t *tensor.Dense, i int) (tensor.View, error) {
	v, err := t.Slice(tensor.S(i))
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedOutput, "instance %d: %v", i, err)
	}
	return v, nil
}

// floatAt reads one float32 element of t.
func floatAt(t tensor.Tensor, coords ...int) (float32, error) {
	v, err := t.At(coords...)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedOutput, "element %v: %v", coords, err)
	}
	f, ok := v.(float32)
	if !ok {
		return 0, errors.Wrapf(ErrMalformedOutput, "element %v is %T, not float32", coords, v)
	}
	return f, nil
}

// materialize copies a view into its own contiguous float32 buffer.
func materialize(v tensor.View) ([]float32, error) {
	var m tensor.Tensor = v
	if !v.Shape().IsScalar() && v.IsMaterializable() {
		m = v.Materialize()
	}
	switch data := m.Data().(type) {
	case []float32:
		return data, nil
	case float32:
		return []float32{data}, nil
	default:
		return nil, errors.Wrapf(ErrMalformedOutput, "unexpected tensor data %T", data)
	}
}

// DecodeKeypoints splits a flat [instances, perInstance, 3] buffer into keypoint sets.
//
// Each keypoint is (x, y, confidence) with x and y normalized to the model input.
// Pixel coordinates are x*width and y*height of the original image.
//
// Arguments:
//   - data: The flat keypoint buffer.
//   - perInstance: The number of keypoints per instance (17 for COCO pose).
//   - shape: The original image size.
//   - maxItems: The maximum number of instances to keep, all when <= 0.
//
// Returns:
//   - []KeypointSet: One set per instance, never nil.
//   - error: ErrMalformedOutput if the buffer does not match the layout.
func DecodeKeypoints(data []float32, perInstance int, shape images.Size, maxItems int) ([]KeypointSet, error) {
	if len(data) == 0 {
		return []KeypointSet{}, nil
	}
	if perInstance <= 0 || len(data)%(perInstance*keypointStride) != 0 {
		return []KeypointSet{}, errors.Wrapf(ErrMalformedOutput,
			"%d values for %d keypoints per instance", len(data), perInstance)
	}

	instances := len(data) / (perInstance * keypointStride)
	t, err := dense(data, instances, perInstance, keypointStride)
	if err != nil {
		return []KeypointSet{}, err
	}

	n := instances
	if maxItems > 0 {
		n = min(n, maxItems)
	}
	sx, sy := float32(shape.Width), float32(shape.Height)

	sets := make([]KeypointSet, n)
	for i := range sets {
		view, err := instance(t, i)
		if err != nil {
			return []KeypointSet{}, err
		}
		set := KeypointSet{
			Normalized:  make([]images.Point, perInstance),
			Pixels:      make([]images.Point, perInstance),
			Confidences: make([]float32, perInstance),
		}
		for k := 0; k < perInstance; k++ {
			var kp [keypointStride]float32
			for j := range kp {
				if kp[j], err = floatAt(view, k, j); err != nil {
					return []KeypointSet{}, err
				}
			}
			p := images.Point{X: kp[0], Y: kp[1]}
			set.Normalized[k] = p
			set.Pixels[k] = p.Scale(sx, sy)
			set.Confidences[k] = kp[2]
		}
		sets[i] = set
	}
	return sets, nil
}

// DecodeMasks splits a flat [instances, rows, cols] probability buffer into
// per-instance masks and renders their composite at the original image size.
//
// Arguments:
//   - data: The flat mask buffer.
//   - dims: The buffer shape as instances, rows, cols.
//   - shape: The original image size.
//   - maxItems: The maximum number of instances to keep, all when <= 0.
//
// Returns:
//   - Mask: Independent copies of each instance plus the composite.
//   - error: ErrMalformedOutput if the buffer does not match dims.
func DecodeMasks(data []float32, dims [3]int, shape images.Size, maxItems int) (Mask, error) {
	if len(data) == 0 {
		return Mask{Instances: [][][]float32{}}, nil
	}

	t, err := dense(data, dims[0], dims[1], dims[2])
	if err != nil {
		return Mask{Instances: [][][]float32{}}, err
	}

	n := dims[0]
	if maxItems > 0 {
		n = min(n, maxItems)
	}

	empty := Mask{Instances: [][][]float32{}}
	instances := make([][][]float32, n)
	for i := range instances {
		view, err := instance(t, i)
		if err != nil {
			return empty, err
		}
		plane, err := materialize(view)
		if err != nil {
			return empty, err
		}
		if len(plane) != dims[1]*dims[2] {
			return empty, errors.Wrapf(ErrMalformedOutput, "instance %d has %d values, want %d", i, len(plane), dims[1]*dims[2])
		}
		rows := make([][]float32, dims[1])
		for y := range rows {
			row := make([]float32, dims[2])
			copy(row, plane[y*dims[2]:(y+1)*dims[2]])
			rows[y] = row
		}
		instances[i] = rows
	}

	return Mask{
		Instances: instances,
		Composite: images.RenderMaskComposite(instances, maskThreshold, shape),
	}, nil
}
