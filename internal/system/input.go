package system

import (
	"fmt"
	"io"
	"time"

	coresys "github.com/l1jgo/undoredo/internal/core/system"
	"github.com/l1jgo/undoredo/internal/handler"
	"go.uber.org/zap"
)

// InputSystem drains console lines handed over by the reader goroutine and
// dispatches them through the command registry. Phase 0 (Input).
type InputSystem struct {
	lines      <-chan string
	registry   *handler.Registry
	maxPerTick int
	out        io.Writer
	log        *zap.Logger
}

func NewInputSystem(lines <-chan string, registry *handler.Registry, maxPerTick int, out io.Writer, log *zap.Logger) *InputSystem {
	return &InputSystem{
		lines:      lines,
		registry:   registry,
		maxPerTick: maxPerTick,
		out:        out,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			if err := s.registry.Dispatch(line); err != nil {
				fmt.Fprintf(s.out, "  \033[31m✗\033[0m %v\n", err)
				s.log.Debug("指令執行錯誤",
					zap.String("line", line),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}
