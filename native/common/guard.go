package common

import (
	"errors"
	"fmt"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// StaticPauses is a fixed pause set, usually loaded from node configuration.
type StaticPauses map[string]bool

func (p StaticPauses) IsPaused(module string) bool {
	return p[strings.ToLower(strings.TrimSpace(module))]
}

// Guard rejects calls into a paused module.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
