package billing

import (
	"context"
	"fmt"

	"boletos/config"
	"boletos/sheets"
)

// FireTriggers copies each trigger's source cell into its target cell, one batch
// write per worksheet, in configuration order. Rewriting the value is enough for the
// spreadsheet to recompute formulas that depend on the target.
func FireTriggers(ctx context.Context, store sheets.Store, triggers []config.TriggerConfig) error {
	var order []string
	batches := map[string][]sheets.CellUpdate{}
	handles := map[string]sheets.Worksheet{}

	for _, tr := range triggers {
		ws, ok := handles[tr.Worksheet]
		if !ok {
			var err error
			ws, err = store.Worksheet(ctx, tr.Worksheet)
			if err != nil {
				return err
			}
			handles[tr.Worksheet] = ws
			order = append(order, tr.Worksheet)
		}
		cells, err := ws.ReadRange(ctx, tr.Source)
		if err != nil {
			return fmt.Errorf("read trigger source %s!%s: %w", tr.Worksheet, tr.Source, err)
		}
		var v any = ""
		if len(cells) > 0 && len(cells[0]) > 0 {
			v = cells[0][0]
		}
		batches[tr.Worksheet] = append(batches[tr.Worksheet], sheets.CellUpdate{
			Range:  tr.Target,
			Values: [][]any{{v}},
		})
	}

	for _, name := range order {
		if err := handles[name].BatchWrite(ctx, batches[name]); err != nil {
			return fmt.Errorf("write triggers in %s: %w", name, err)
		}
	}
	return nil
}
