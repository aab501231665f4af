package commands

import (
	"context"
	"fmt"
	"os"

	"eclass-backend/lib/configutil"
	"eclass-backend/lib/restyutil"
	"eclass-backend/lib/scrapers/eclass/core"
	"eclass-backend/lib/scrapers/eclass/view"
	"eclass-backend/lib/serviceutil"
	"eclass-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eclass-cli",
	Short: "eclass-cli browses and exports course records from the eclass portal.",
}

var (
	debugHttp *bool
	verbose   *bool
)

func init() {
	debugHttp = rootCmd.PersistentFlags().Bool("debug-http", false, "Dump every HTTP exchange to .dev/resty.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// defaults to the production portal when empty
	BaseUrl string `json:"base_url"`
}

const defaultBaseUrl = "https://eclass.seoultech.ac.kr"

// createClient reads config.json5, builds a session client and logs in.
// Any failure here is terminal for the run.
func createClient(ctx context.Context) (view.Client, Config) {
	if *verbose {
		telemetry.InitSlog(true)
	}

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = defaultBaseUrl
	}

	opts := core.ClientOptions{BaseUrl: cfg.BaseUrl}
	if *debugHttp {
		opts.DebugOutput = restyutil.NewFilesystemOutput(".dev/resty")
	}

	coreClient, err := core.NewClient(ctx, opts)
	if err != nil {
		serviceutil.Fatal("failed to initialize session client", err)
	}
	err = coreClient.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		serviceutil.Fatal("failed to login", err)
	}

	return view.NewClient(coreClient, view.ClientOptions{}), cfg
}
