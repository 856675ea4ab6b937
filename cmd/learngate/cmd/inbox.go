package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jmcleod/learngate/client"
	"github.com/jmcleod/learngate/tui"
)

var (
	inboxURL   string
	inboxEmail string
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Open the terminal inbox against a running BFF",
	Long: `Signs in to the BFF and shows notifications and courses. The password is
read from LEARNGATE_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("LEARNGATE_PASSWORD")
		if inboxEmail == "" || password == "" {
			return errors.New("--email and LEARNGATE_PASSWORD are required")
		}
		c, err := client.New(inboxURL, client.WithTimeout(30*time.Second))
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := c.Login(ctx, inboxEmail, password); err != nil {
			return fmt.Errorf("sign in failed: %w", err)
		}
		defer c.Logout(ctx)

		_, err = tea.NewProgram(tui.New(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(inboxCmd)
	inboxCmd.Flags().StringVar(&inboxURL, "url", "http://localhost:8080", "Base URL of the BFF")
	inboxCmd.Flags().StringVar(&inboxEmail, "email", "", "Account email")
}
