package ensemble

import (
	"fmt"
	"sort"
)

// Labels is a sorted, duplicate-free class label set. A label's position is its class index.
type Labels []string

// NewLabels returns a sorted copy of labels. At least two distinct labels are required.
func NewLabels(labels []string) (Labels, error) {
	if len(labels) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 labels, got %d", ErrInvalidLabels, len(labels))
	}
	out := make(Labels, len(labels))
	copy(out, labels)
	sort.Strings(out)
	for i, l := range out {
		if l == "" {
			return nil, fmt.Errorf("%w: empty label", ErrInvalidLabels)
		}
		if i > 0 && out[i-1] == l {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidLabels, l)
		}
	}
	return out, nil
}

// Index returns the class index of label.
func (l Labels) Index(label string) (int, error) {
	i := sort.SearchStrings(l, label)
	if i == len(l) || l[i] != label {
		return -1, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return i, nil
}

// Indices maps every label in subset to its class index, in ascending index order.
func (l Labels) Indices(subset []string) ([]int, error) {
	seen := make(map[int]bool, len(subset))
	out := make([]int, 0, len(subset))
	for _, s := range subset {
		i, err := l.Index(s)
		if err != nil {
			return nil, err
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out, nil
}
