package capture

import (
	"math"
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// ScreenTarget is recorded when a pointer event hits no block.
const ScreenTarget = "Screen"

// PointerKind is the kind of pointer event.
type PointerKind string

const (
	PointerClick       PointerKind = "click"
	PointerContextMenu PointerKind = "contextmenu"
	PointerWheel       PointerKind = "wheel"
)

// Element is one node on the path from the event target to the document root.
type Element struct {
	// BlockID is set when the element renders a block.
	BlockID string
	Bounds  timeline.Rect
}

// PointerEvent is a raw pointer event. Path[0] is the element that received
// the event; later entries are its ancestors, ending at the root.
type PointerEvent struct {
	Kind    PointerKind
	ClientX float64
	ClientY float64
	Path    []Element
}

// ResolvePointer builds the interaction record for a pointer event.
//
// The nearest element carrying a block id becomes the target, and X/Y are
// percentages of its bounding box. Events outside any block target the
// screen, measured against the outermost element when it has a size.
func ResolvePointer(ev PointerEvent, now time.Time) timeline.Interaction {
	in := timeline.Interaction{
		Type:      pointerInteractionType(ev.Kind),
		Timestamp: now,
		Target:    ScreenTarget,
	}

	var frame *Element
	for i := range ev.Path {
		if ev.Path[i].BlockID != "" {
			frame = &ev.Path[i]
			in.Target = frame.BlockID
			break
		}
	}
	if frame == nil && len(ev.Path) > 0 {
		frame = &ev.Path[len(ev.Path)-1]
	}

	if frame != nil && frame.Bounds.Width > 0 && frame.Bounds.Height > 0 {
		x := percent(ev.ClientX-frame.Bounds.X, frame.Bounds.Width)
		y := percent(ev.ClientY-frame.Bounds.Y, frame.Bounds.Height)
		in.X = &x
		in.Y = &y
	}
	return in
}

func pointerInteractionType(kind PointerKind) timeline.InteractionType {
	switch kind {
	case PointerContextMenu:
		return timeline.InteractionContextMenu
	case PointerWheel:
		return timeline.InteractionWheel
	default:
		return timeline.InteractionClick
	}
}

// percent returns offset/size as a percentage rounded to two decimals.
func percent(offset, size float64) float64 {
	return math.Round(offset/size*10000) / 100
}
