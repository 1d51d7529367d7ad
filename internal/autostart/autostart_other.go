//go:build !darwin && !linux

package autostart

func Path(label string) string { return "" }

func IsEnabled(label string) (bool, error) { return false, ErrUnsupported }

func Enable(label string) error { return ErrUnsupported }

func Disable(label string) error { return ErrUnsupported }
