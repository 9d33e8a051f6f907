package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/campuschat/internal/service"
	"go.uber.org/zap"
)

var purgeCmd = &cobra.Command{
	Use:   "purge-message <message-id>",
	Short: "Permanently delete a message (moderation)",
	Long: `Removes a message row for good. Replies that pointed at it keep
their content and lose the reference.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		messageID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid message id: %w", err)
		}

		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.log.Sync()

		repos, err := rt.openRepos(cmd.Context())
		if err != nil {
			return err
		}
		defer repos.close()

		messages := service.NewMessageService(repos.messages, repos.groups, repos.users)
		if err := messages.Purge(cmd.Context(), messageID); err != nil {
			return err
		}
		rt.log.Info("message purged", zap.Stringer("id", messageID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
