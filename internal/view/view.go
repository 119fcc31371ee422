package view

import (
	"errors"

	"agency-chat-client/internal/models"
)

// DateGroup is one calendar day's worth of messages, in arrival order.
type DateGroup struct {
	Date     string               `json:"date"`
	Messages []models.ChatMessage `json:"messages"`
}

// GroupByDate buckets messages by the UTC calendar day of their timestamp.
// Group order follows first appearance; order within a group is preserved.
func GroupByDate(msgs []models.ChatMessage) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)

	for _, msg := range msgs {
		day := msg.CreatedAt.UTC().Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DateGroup{Date: day})
		}
		groups[i].Messages = append(groups[i].Messages, msg)
	}
	return groups
}

var errOutOfRange = errors.New("image index out of range")

// Lightbox navigates the image list of a single message. Navigation wraps
// around at both ends and never spans into another message's images.
type Lightbox struct {
	images []string
	index  int
}

// NewLightbox opens a lightbox on the image clicked at start.
func NewLightbox(images []string, start int) (*Lightbox, error) {
	if start < 0 || start >= len(images) {
		return nil, errOutOfRange
	}
	return &Lightbox{images: append([]string(nil), images...), index: start}, nil
}

// Next advances to the following image, wrapping to the first.
func (l *Lightbox) Next() {
	l.index = (l.index + 1) % len(l.images)
}

// Prev moves to the preceding image, wrapping to the last.
func (l *Lightbox) Prev() {
	l.index = (l.index - 1 + len(l.images)) % len(l.images)
}

// Jump moves directly to the image at i, as the dot indicators do.
func (l *Lightbox) Jump(i int) error {
	if i < 0 || i >= len(l.images) {
		return errOutOfRange
	}
	l.index = i
	return nil
}

// Current returns the displayed image URL.
func (l *Lightbox) Current() string {
	return l.images[l.index]
}

// Index returns the displayed position.
func (l *Lightbox) Index() int {
	return l.index
}

// Count returns the number of images.
func (l *Lightbox) Count() int {
	return len(l.images)
}
