package main

import (
	"context"

	"eclass-backend/cmd/eclass-cli/commands"
	"eclass-backend/lib/serviceutil"
	"eclass-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	t, err := telemetry.SetupFromEnv(ctx, "eclass-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)
	telemetry.InitSlog(false)

	commands.ExecuteContext(ctx)
}
