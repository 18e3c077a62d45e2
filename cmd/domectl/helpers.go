package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/oakmount-obs/domectl/pkg/config"
	"github.com/oakmount-obs/domectl/pkg/dome"
	"github.com/oakmount-obs/domectl/pkg/hwio"
	"github.com/oakmount-obs/domectl/pkg/state"
)

// session is everything one command needs: the configuration, the board,
// the engine over the restored state, and the store to persist it again.
type session struct {
	cfg   *config.Config
	store *state.Store
	board hwio.Board
	eng   *dome.Engine
}

// newSession loads the config, restores the persisted dome and builds the
// engine. The board is constructed but not opened.
func newSession() (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	store := state.NewStore(statePath)
	d, err := store.Load()
	if err != nil {
		return nil, err
	}
	board, err := cfg.NewBoard()
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:   cfg,
		store: store,
		board: board,
		eng:   dome.New(cfg, board, d),
	}, nil
}

// runEngine is the body of most commands: restore state, open the board,
// run op, close the board and persist the state stamped with cmdName. The
// state is saved even when op failed, so an aborted motion still leaves
// an accurate record behind.
func runEngine(cmdName string, op func(*dome.Engine) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if err := s.board.Open(); err != nil {
		return fmt.Errorf("failed to open board: %v", err)
	}
	opErr := op(s.eng)
	if err := s.board.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close board")
	}
	if err := s.store.Save(s.eng.Dome(), cmdName); err != nil {
		if opErr == nil {
			opErr = err
		} else {
			logrus.WithError(err).Error("Failed to save state")
		}
	}
	return opErr
}

func parseAzimuthArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	az, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid azimuth: %v", err)
	}
	if az < 0 || az >= 360 {
		return 0, fmt.Errorf("azimuth %g out of range [0, 360)", az)
	}

	return az, nil
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
