package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/attendancebackend/handlers"
	"github.com/camden-git/attendancebackend/permissions"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	Long: `Issue a signed access token for an actor. Repeat --perm for each permission,
or pass --perm '*' for every permission. --subject scopes the token to one subject.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Uint("actor", 0, "Actor ID recorded as approver/corrector (required)")
	tokenCmd.Flags().StringSlice("perm", nil, "Permission key (repeatable)")
	tokenCmd.Flags().Uint("subject", 0, "Subject the token may act for")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("actor")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}

	perms := mustGetStringSlice(cmd, "perm")
	for _, p := range perms {
		if p != handlers.WildcardPermission && !permissions.IsValidPermissionKey(p) {
			return fmt.Errorf("unknown permission %q", p)
		}
	}

	var subjectID *uint
	if id := mustGetUint(cmd, "subject"); id != 0 {
		subjectID = &id
	}
	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return err
	}

	token, expires, err := handlers.IssueToken([]byte(cfg.JWTSecret), mustGetUint(cmd, "actor"), perms, subjectID, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Printf("# expires %s\n", expires.UTC().Format(time.RFC3339))
	return nil
}
