package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/api"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/resolver"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the Tab'd annotation API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (default from config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			port := cfg.Server.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}
			fmt.Printf("Starting Tab'd API server on port %d...\n", port)

			client := annotation.NewGitHubClient(cfg)
			svc := annotation.NewService(client, annotation.ResolverFactory(client), annotation.ConfigFrom(cfg))
			resolvers := func(id provenance.DiffIdentity) *resolver.Resolver {
				return annotation.NewResolver(client, id)
			}

			server := api.NewServer(port, svc, resolvers, cfg.Settings, api.WithAllowOrigins(cfg.Server.AllowOrigins))
			return server.Start()
		},
	}
}
