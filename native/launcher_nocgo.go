//go:build !cgo

package native

func (l *Launcher) Run(args []string) (int, error) {
	if _, err := schedulerArgs(args); err != nil {
		return 0, err
	}
	return 0, ErrNativeUnavailable
}
