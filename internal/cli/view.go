package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/coedit/internal/presence"
)

// lineView renders presence effects as text lines, one per call, and keeps
// them for the final report.
type lineView struct {
	mu      sync.Mutex
	w       io.Writer // nil buffers silently
	effects []string
}

var _ presence.View = (*lineView)(nil)

func (v *lineView) emit(kind string, args ...string) {
	var parts []string
	for _, a := range args {
		if a != "" {
			parts = append(parts, a)
		}
	}
	line := fmt.Sprintf("%s(%s)", kind, strings.Join(parts, ", "))

	v.mu.Lock()
	defer v.mu.Unlock()
	v.effects = append(v.effects, line)
	if v.w != nil {
		fmt.Fprintln(v.w, line)
	}
}

func (v *lineView) lines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string{}, v.effects...)
}

func (v *lineView) watch(s *presence.Signals) {
	s.CodeEditorOpened.Subscribe(func(e presence.CodeEditorEvent) {
		v.emit("CodeEditorOpened", e.Peer, e.Target)
	})
	s.CodeEditorClosed.Subscribe(func(e presence.CodeEditorEvent) {
		v.emit("CodeEditorClosed", e.Peer, e.Target)
	})
}

func (v *lineView) RenderCursor(peer string, at presence.Point, color string) {
	pos := strconv.FormatFloat(at.X, 'g', -1, 64) + "," + strconv.FormatFloat(at.Y, 'g', -1, 64)
	v.emit("RenderCursor", peer, pos, color)
}

func (v *lineView) RemoveCursor(peer string) { v.emit("RemoveCursor", peer) }

func (v *lineView) AddHighlight(peer, target, color string) {
	v.emit("AddHighlight", peer, target, color)
}

func (v *lineView) RemoveHighlight(peer, target string) { v.emit("RemoveHighlight", peer, target) }

func (v *lineView) StartEditing(peer, target, color string) {
	v.emit("StartEditing", peer, target, color)
}

func (v *lineView) PulseEditing(peer, target string) { v.emit("PulseEditing", peer, target) }
func (v *lineView) StopEditing(peer, target string)  { v.emit("StopEditing", peer, target) }

func (v *lineView) RaiseChanged(peer, target, color string) {
	v.emit("RaiseChanged", peer, target, color)
}

func (v *lineView) ClearChanged(peer, target string) { v.emit("ClearChanged", peer, target) }
func (v *lineView) MirrorHighlight(target string)    { v.emit("MirrorHighlight", target) }
func (v *lineView) UnmirrorHighlight(target string)  { v.emit("UnmirrorHighlight", target) }
