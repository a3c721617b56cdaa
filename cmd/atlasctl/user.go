package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"Atlas/internal/model"
	"Atlas/internal/repository"
)

const maxNicknameLength = 64

var userIDFlag string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the local user directory",
}

// userUpsertCmd 用户目录只保存昵称，fork 署名时读取
var userUpsertCmd = &cobra.Command{
	Use:   "upsert <nickname>",
	Short: "Create or rename a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nickname, err := normalizeNickname(args[0])
		if err != nil {
			return err
		}

		userID := uuid.New()
		if userIDFlag != "" {
			if userID, err = parseUserID(userIDFlag); err != nil {
				return err
			}
		}

		closeDB, err := openDatabase()
		if err != nil {
			return err
		}
		defer closeDB()

		u := &model.User{Nickname: nickname}
		u.ID = userID
		if err := repository.Default().UpsertUser(context.Background(), u); err != nil {
			return err
		}

		printSuccess("User saved")
		printLabelValue("id", userID.String())
		printLabelValue("nickname", nickname)
		return nil
	},
}

func init() {
	userUpsertCmd.Flags().StringVar(&userIDFlag, "id", "", "User id (default: a new UUID)")
	userCmd.AddCommand(userUpsertCmd)
}

func normalizeNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	if nickname == "" {
		return "", fmt.Errorf("nickname must not be empty")
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		return "", fmt.Errorf("nickname must be at most %d characters", maxNicknameLength)
	}
	return nickname, nil
}
