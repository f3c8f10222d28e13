package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"civicid/pkg/domain"
)

func newAgentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Call the identity agent directly",
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Report whether the agent answers its health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := c.v.GetString("agent-url")
			healthy := c.agent().HealthCheck(cmd.Context())
			status := "healthy"
			if !healthy {
				status = "unhealthy"
			}
			if err := c.print(map[string]string{"status": status, "agentUrl": url}); err != nil {
				return err
			}
			if !healthy {
				return errors.New("identity agent is unhealthy")
			}
			return nil
		},
	}

	createDID := &cobra.Command{
		Use:   "create-did",
		Short: "Register a new PRISM DID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			alias := c.v.GetString("agent.alias")
			if alias == "" {
				alias = fmt.Sprintf("civicctl-%d", time.Now().UnixMilli())
			}
			res, err := c.agent().CreateDID(cmd.Context(), alias)
			if err != nil {
				return err
			}
			return c.print(map[string]any{
				"did":         res.DID,
				"longFormDid": res.LongFormDID,
				"fallback":    res.Fallback,
			})
		},
	}
	createDID.Flags().String("alias", "", flagInfo("DID alias", "agent.alias"))
	c.bind("agent", createDID.Flags())

	resolve := &cobra.Command{
		Use:   "resolve <did>",
		Short: "Resolve a DID document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			did, err := domain.ParseDID(args[0])
			if err != nil {
				return err
			}
			doc, err := c.agent().ResolveDID(cmd.Context(), did.String())
			if err != nil {
				return err
			}
			_, err = c.out.Write(append(doc.Raw, '\n'))
			return err
		},
	}

	cmd.AddCommand(health, createDID, resolve)
	return cmd
}
