// Package browser selects a browser driver for the verification runner.
package browser

import (
	"fmt"
	"sort"

	"dev/bravebird/ui-verification-go/pkg/browser/pwbrowser"
	"dev/bravebird/ui-verification-go/pkg/browser/rodbrowser"
	"dev/bravebird/ui-verification-go/pkg/verify"
)

// DefaultDriver is used when a request names no driver
const DefaultDriver = rodbrowser.Name

var factories = map[string]func(headless bool) verify.Launcher{
	rodbrowser.Name: func(headless bool) verify.Launcher {
		l := rodbrowser.NewLauncher()
		l.Headless = headless
		return l
	},
	pwbrowser.Name: func(headless bool) verify.Launcher {
		l := pwbrowser.NewLauncher()
		l.Headless = headless
		return l
	},
}

// NewLauncher returns a headless launcher for the named driver
func NewLauncher(name string) (verify.Launcher, error) {
	return NewLauncherWithOptions(name, true)
}

// NewLauncherWithOptions returns a launcher for the named driver
func NewLauncherWithOptions(name string, headless bool) (verify.Launcher, error) {
	if name == "" {
		name = DefaultDriver
	}
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown browser driver %q (available: %v)", name, Drivers())
	}
	return factory(headless), nil
}

// Drivers lists the registered driver names
func Drivers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
