// taskflow CLI — инструмент командной строки для управления задачами
// и просмотра журнала аудита через HTTP API.
//
// Использование:
//
//	taskflow [--api-url URL] [--token JWT] [--json] <command> <subcommand> [flags]
//
// Флаги можно задать через окружение: TASKFLOW_API_URL, TASKFLOW_TOKEN,
// TASKFLOW_JSON, TASKFLOW_AMQP_URL.
//
// Команды:
//
//	task  Управление задачами
//	log   Журнал аудита
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shaiso/taskflow/internal/cli"
	"github.com/shaiso/taskflow/internal/mq"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskflow",
		Short:         "taskflow CLI — task management with dependency tracking",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	viper.SetEnvPrefix("TASKFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().String("token", "", "JWT bearer token")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("amqp-url", mq.DefaultURL(), "RabbitMQ URL for log tail")

	for _, name := range []string{"api-url", "token", "json", "amqp-url"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	clientFn := func() *cli.Client { return cli.NewClient(viper.GetString("api-url"), viper.GetString("token")) }
	outputFn := func() *cli.Output { return cli.NewOutput(viper.GetBool("json")) }
	amqpURLFn := func() string { return viper.GetString("amqp-url") }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewLogCmd(clientFn, outputFn, amqpURLFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
