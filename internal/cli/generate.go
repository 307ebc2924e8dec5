package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrag/pkg/llm"
	"docrag/pkg/token"
)

func newGenerateCommand(o *options) *cobra.Command {
	var (
		model  string
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Send a raw prompt to the generation backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if model == "" {
				model = o.cfg.LLM.Model
			}
			client := llm.NewClient(o.cfg.LLM)
			out := cmd.OutOrStdout()

			if stream {
				err := client.Stream(cmd.Context(), model, args[0], func(fragment string) error {
					_, err := fmt.Fprint(out, fragment)
					return err
				})
				fmt.Fprintln(out)
				return err
			}
			answer, err := client.Generate(cmd.Context(), model, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, answer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model name (default: llm.model)")
	cmd.Flags().BoolVar(&stream, "stream", false, "print fragments as they arrive")
	return cmd
}

func newTokenCommand(o *options) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the /api/v1 management routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.NewJWTManager(o.cfg.JWT.Secret, o.cfg.JWT.ExpireHours).GenerateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ragctl", "token subject")
	return cmd
}
