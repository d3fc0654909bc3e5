package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Labels maps a model's class indices to human-readable names.
type Labels []string

// Name returns the label at idx, or false when the index has no label.
func (l Labels) Name(idx int) (string, bool) {
	if idx < 0 || idx >= len(l) {
		return "", false
	}
	return l[idx], true
}

// Index returns the position of name, or -1 when the label is unknown.
func (l Labels) Index(name string) int {
	for i, n := range l {
		if n == name {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy of the labels.
func (l Labels) Clone() Labels {
	if l == nil {
		return nil
	}
	out := make(Labels, len(l))
	copy(out, l)
	return out
}

// LabelSet identifies one of the built-in label lists.
type LabelSet string

const (
	// LabelSetCOCO is the 80 COCO classes in the zero-based order used by YOLO exports.
	LabelSetCOCO LabelSet = "coco"
	// LabelSetVOC is the 20 Pascal VOC classes, no background.
	LabelSetVOC LabelSet = "voc"
	// LabelSetDOTA is the 15 DOTA v1 aerial classes used by oriented-box models.
	LabelSetDOTA LabelSet = "dota"
)

// COCOLabels is the 80 COCO classes (no background).
var COCOLabels = Labels{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// VOCLabels is the 20 Pascal VOC classes (no background).
var VOCLabels = Labels{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa", "train",
	"tvmonitor",
}

// DOTALabels is the DOTA v1 class list.
var DOTALabels = Labels{
	"plane", "ship", "storage tank", "baseball diamond", "tennis court", "basketball court",
	"ground track field", "harbor", "bridge", "large vehicle", "small vehicle", "helicopter",
	"roundabout", "soccer ball field", "swimming pool",
}

var labelSets = map[LabelSet]Labels{
	LabelSetCOCO: COCOLabels,
	LabelSetVOC:  VOCLabels,
	LabelSetDOTA: DOTALabels,
}

// LookupLabels returns a copy of a built-in label set.
//
// Arguments:
//   - set: The label set name, case-insensitive.
//
// Returns:
//   - Labels: An independent copy of the label list.
//   - error: An error if the set is not registered.
func LookupLabels(set LabelSet) (Labels, error) {
	labels, ok := labelSets[LabelSet(strings.ToLower(string(set)))]
	if !ok {
		return nil, errors.Errorf("label set %q not registered", set)
	}
	return labels.Clone(), nil
}
