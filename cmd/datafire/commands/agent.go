package commands

import (
	"fmt"
	"net"
	"strconv"

	"github.com/RezaEskandarii/datafire/internal/agent"
	"github.com/RezaEskandarii/datafire/internal/logger"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var AgentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run an executor on this machine",
	Long: `Run the remote executor. It accepts batches from the scheduler over HTTP
and publishes them to RabbitMQ or runs them against PostgreSQL.

Every request must carry the X-Agent-Token header. Unless agent.token is
configured, the token is derived from this machine's identity and printed at
startup so it can be registered with "datafire executor add".`,
	RunE: runAgent,
}

var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print this machine's executor token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := agentToken()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	AgentCmd.Flags().String("host", config.DefaultAgentHost, "Listen address")
	AgentCmd.Flags().Int("port", config.DefaultAgentPort, "Listen port")
	_ = v.BindPFlag("agent.host", AgentCmd.Flags().Lookup("host"))
	_ = v.BindPFlag("agent.port", AgentCmd.Flags().Lookup("port"))
}

func agentToken() (string, error) {
	if token := v.GetString("agent.token"); token != "" {
		return token, nil
	}
	return agent.MachineToken()
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAgent(v)
	if err != nil {
		return err
	}
	token := cfg.Token
	if token == "" {
		if token, err = agent.MachineToken(); err != nil {
			return err
		}
	}
	gin.SetMode(gin.ReleaseMode)

	log := logger.Named("agent")
	log.Infow("executor token, register it with the scheduler", "token", token)

	ctx := cmd.Context()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return agent.NewServer(token, log).ListenAndServe(ctx, addr)
}
