package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"reflect"
	"runtime"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/state"
	slogmulti "github.com/samber/slog-multi"
)

// Options controls how a node is started
type Options struct {
	// Context is the parent context of the node, defaults to context.Background
	Context   context.Context
	LogLevel  slog.Level
	Transport Transport
	// Node defaults to a LocalNode built from the config
	Node state.Node
	// Ready is called on the main loop once every module is initialized
	Ready func(s *state.State)
}

// NewLogger builds the console logger for a node, plus a file logger if logPath is set
func NewLogger(id string, level slog.Level, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: id,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs a node until its context is cancelled
func Start(ncfg state.LocalCfg, opts Options) error {
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(context.Canceled)

	dispatch := make(chan func(env *state.State) error, 128)

	logger, err := NewLogger(ncfg.Id, opts.LogLevel, ncfg.LogPath)
	if err != nil {
		return err
	}

	node := opts.Node
	if node == nil {
		node = state.NewLocalNode(ncfg.Address, ncfg.Elements, ncfg.Relay)
	}

	s := state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			LocalCfg:        ncfg,
			Log:             logger,
		},
	}

	s.Log.Debug("init modules")
	err = initModules(&s, node, opts.Transport)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Info("node initialized", "addr", node.PrimaryAddr(), "elements", node.ElemCount(), "net", ncfg.NetIdx)

	if opts.Ready != nil {
		s.Dispatch(func(s *state.State) error {
			opts.Ready(s)
			return nil
		})
	}
	return MainLoop(&s, dispatch)
}

func initModules(s *state.State, node state.Node, transport Transport) error {
	var modules []state.Module
	modules = append(modules, &RouteTrace{})
	modules = append(modules, &WeftRouter{Node: node, Transport: transport})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*4 {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	cause := context.Cause(s.Context)
	s.Log.Info("stopped main loop", "reason", cause)
	Stop(s)
	if cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
