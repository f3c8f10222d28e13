package main

import (
	"time"

	"github.com/spf13/cobra"

	"civicid/internal/linking/service"
	"civicid/internal/platform/config"
	"civicid/pkg/domain"
)

func newLinkCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Drive the wallet linking flow for the token's user",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Open a linking invitation and print its URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.api().StartLink(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(map[string]string{
				"connectionId":  res.ConnectionID,
				"invitationUrl": res.Invitation.URL,
				"state":         res.State,
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current link state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.api().LinkStatus(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(st)
		},
	}

	wait := &cobra.Command{
		Use:   "wait <connectionId>",
		Short: "Poll until the wallet accepts and the link is created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			connectionID, err := domain.ParseConnectionID(args[0])
			if err != nil {
				return err
			}
			poller := service.NewPoller(c.api(),
				c.v.GetDuration("link.interval"),
				c.v.GetInt("link.attempts"),
				service.WithPollerLogger(c.logger()),
			)
			res, err := poller.Wait(cmd.Context(), "", connectionID)
			if err != nil {
				return err
			}
			return c.print(map[string]any{
				"did":          res.DID.String(),
				"linkedAt":     res.LinkedAt.Format(time.RFC3339),
				"connectionId": res.ConnectionID.String(),
			})
		},
	}
	wait.Flags().Duration("interval", config.DefaultPollInterval, flagInfo("delay between attempts", "link.interval"))
	wait.Flags().Int("attempts", config.DefaultPollAttempts, flagInfo("total attempts before giving up", "link.attempts"))
	c.bind("link", wait.Flags())

	cmd.AddCommand(start, status, wait)
	return cmd
}
