package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DannyMang/more-compute-sub000/internal/appconfig"
	"github.com/DannyMang/more-compute-sub000/internal/eventbus"
	"github.com/DannyMang/more-compute-sub000/internal/logx"
	"github.com/DannyMang/more-compute-sub000/internal/persist"
	"github.com/DannyMang/more-compute-sub000/notebook"
	"github.com/DannyMang/more-compute-sub000/schema"
	"github.com/DannyMang/more-compute-sub000/wsclient"
	"pkt.systems/pslog"
)

func newAttachCmd() *cobra.Command {
	var cfgPath string
	var gatewayURL string
	var runIndex int
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach to a kernel gateway and follow notebook state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logx.Ctx(ctx)

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if gatewayURL != "" {
				cfg.GatewayURL = gatewayURL
			}

			store, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
			if err != nil {
				return err
			}
			bus := eventbus.New(logger)
			client := wsclient.New(wsclient.Config{
				URL:            cfg.GatewayURL,
				InitialBackoff: time.Duration(cfg.Reconnect.InitialBackoffMillis) * time.Millisecond,
				MaxBackoff:     time.Duration(cfg.Reconnect.MaxBackoffMillis) * time.Millisecond,
				MaxAttempts:    cfg.Reconnect.MaxAttempts,
				Logger:         logger,
			})
			engine, err := notebook.New(notebook.Deps{
				Transport:  client,
				EventSink:  bus,
				Persist:    store,
				GatewayURL: cfg.GatewayURL,
				Logger:     logger,
			}, schema.EngineConfig{MaxOutputsPerCell: cfg.Engine.MaxOutputsPerCell})
			if err != nil {
				return err
			}

			events, cancel := bus.Subscribe()
			defer cancel()

			if err := engine.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()
			logger.Info("attached", "gateway", cfg.GatewayURL)

			ranRequested := runIndex < 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-events:
					if !ok {
						return nil
					}
					logEvent(logger, event)
					if event.Type == eventbus.EventExecution && event.Execution.Type == schema.ExecutionEventCompleted && event.Execution.Failed {
						printFailure(cmd, engine, event.Execution.CellID)
					}
					if !ranRequested && event.Type == eventbus.EventCell && event.Cell.Type == schema.CellEventLoaded {
						ranRequested = true
						if err := runAt(cmd, engine, runIndex); err != nil {
							return err
						}
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "kernel gateway websocket URL override")
	cmd.Flags().IntVar(&runIndex, "run", -1, "run the cell at this index once the notebook loads")
	return cmd
}

func runAt(cmd *cobra.Command, engine notebook.Engine, index int) error {
	cells := engine.Cells()
	if index >= len(cells) {
		return fmt.Errorf("run index %d out of range, notebook has %d cells", index, len(cells))
	}
	return engine.RunCell(cmd.Context(), cells[index].ID)
}

func printFailure(cmd *cobra.Command, engine notebook.Engine, id schema.CellID) {
	cell, ok := engine.Cell(id)
	if !ok || cell.LastError == nil {
		return
	}
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "%s: %s\n", cell.LastError.Name, cell.LastError.Message)
	for _, line := range schema.FormatTraceback(cell.LastError.Traceback) {
		fmt.Fprintln(out, line)
	}
	for _, hint := range cell.LastError.Suggestions {
		fmt.Fprintf(out, "hint: %s\n", hint)
	}
}

func logEvent(logger pslog.Logger, event eventbus.Event) {
	switch event.Type {
	case eventbus.EventCell:
		logger.Info("cell", "event", event.Cell.Type, "cell", event.Cell.CellID, "index", event.Cell.Index)
	case eventbus.EventExecution:
		exec := event.Execution
		if exec.Type == schema.ExecutionEventCompleted {
			logger.Info("execution", "event", exec.Type, "cell", exec.CellID, "failed", exec.Failed, "duration_ms", exec.Duration.Milliseconds())
			return
		}
		logger.Info("execution", "event", exec.Type, "cell", exec.CellID, "state", exec.State)
	case eventbus.EventConn:
		conn := event.Conn
		if conn.Err != "" {
			logger.Warn("connection", "state", conn.State, "attempt", conn.Attempt, "err", conn.Err)
			return
		}
		logger.Info("connection", "state", conn.State, "attempt", conn.Attempt)
	case eventbus.EventSave:
		if event.Save.Err != "" {
			logger.Warn("save failed", "err", event.Save.Err)
			return
		}
		logger.Info("saved", "path", event.Save.Path)
	}
}
