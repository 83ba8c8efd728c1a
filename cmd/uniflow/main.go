package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uniflowhq/uniflow/pkg/client"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var (
	apiURL  string
	cfgFile string
	token   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "uniflow",
	Short: "UniFlow API CLI",
	Long: `uniflow is the command-line interface for the UniFlow API.

It lets you create accounts, sign in, and inspect or edit your study
profile against a running UniFlow backend.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.uniflow")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if apiURL == "" {
			apiURL = "http://localhost:8080"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.uniflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "UniFlow API URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "access token (default from config file or TOKEN env)")

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)

	profileCmd.AddCommand(profileGetCmd)
	profileCmd.AddCommand(profileSetCmd)

	profileSetCmd.Flags().String("name", "", "display name")
	profileSetCmd.Flags().String("school", "", "school")
	profileSetCmd.Flags().String("department", "", "department")
	profileSetCmd.Flags().String("bio", "", "bio")
	profileSetCmd.Flags().String("theme", "", "theme color, e.g. #3B82F6")
}

func newClient() *client.Client {
	opts := []client.Option{}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(apiURL, opts...)
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// readPassword prompts on stderr and reads a line from stdin.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ── signup ───────────────────────────────────────────────────────────────────

var signupCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create a new UniFlow account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")

		c, cancel := ctx()
		defer cancel()

		res, err := newClient().Signup(c, args[0], password, name)
		if err != nil {
			return err
		}

		fmt.Printf("account created: %s\n", res.User.Email)
		printTokens(res.Token, res.RefreshToken)
		return nil
	},
}

func init() {
	signupCmd.Flags().String("name", "", "display name")
}

// ── signin ───────────────────────────────────────────────────────────────────

var signinCmd = &cobra.Command{
	Use:   "signin <email>",
	Short: "Sign in with email and password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		c, cancel := ctx()
		defer cancel()

		res, err := newClient().Signin(c, args[0], password)
		if err != nil {
			return err
		}

		fmt.Printf("signed in as %s\n", res.User.Email)
		printTokens(res.Token, res.RefreshToken)
		return nil
	},
}

func printTokens(access, refresh string) {
	fmt.Println("\nexport these for subsequent commands:")
	fmt.Printf("  TOKEN=%s\n", access)
	fmt.Printf("  REFRESH_TOKEN=%s\n", refresh)
}

// ── whoami ───────────────────────────────────────────────────────────────────

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account the current token belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cancel := ctx()
		defer cancel()

		p, err := newClient().GetProfile(c)
		if err != nil {
			return err
		}
		if p.Name != "" {
			fmt.Printf("%s <%s>\n", p.Name, p.Email)
		} else {
			fmt.Println(p.Email)
		}
		return nil
	},
}

// ── profile ──────────────────────────────────────────────────────────────────

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or edit your study profile",
}

var profileGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cancel := ctx()
		defer cancel()

		p, err := newClient().GetProfile(c)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "email:\t%s\n", p.Email)
		fmt.Fprintf(w, "name:\t%s\n", p.Name)
		fmt.Fprintf(w, "school:\t%s\n", p.School)
		fmt.Fprintf(w, "department:\t%s\n", p.Department)
		fmt.Fprintf(w, "level:\t%s\n", p.Level)
		fmt.Fprintf(w, "academic year:\t%s\n", p.AcademicYear)
		fmt.Fprintf(w, "subjects:\t%v\n", p.Subjects)
		fmt.Fprintf(w, "bio:\t%s\n", p.Bio)
		fmt.Fprintf(w, "theme:\t%s\n", p.ThemeColor)
		fmt.Fprintf(w, "dark mode:\t%v\n", p.DarkMode)
		return w.Flush()
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := map[string]any{}
		for flag, key := range map[string]string{
			"name":       "name",
			"school":     "school",
			"department": "department",
			"bio":        "bio",
			"theme":      "themeColor",
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				fields[key] = v
			}
		}
		if len(fields) == 0 {
			return fmt.Errorf("nothing to update — pass at least one flag")
		}

		c, cancel := ctx()
		defer cancel()

		p, err := newClient().UpdateProfile(c, fields)
		if err != nil {
			return err
		}
		fmt.Printf("profile updated (last change %s)\n", p.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

// ── passwd ───────────────────────────────────────────────────────────────────

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change your account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := readPassword("Current password: ")
		if err != nil {
			return err
		}
		next, err := readPassword("New password: ")
		if err != nil {
			return err
		}

		c, cancel := ctx()
		defer cancel()

		if err := newClient().ChangePassword(c, current, next); err != nil {
			return err
		}
		fmt.Println("password updated")
		return nil
	},
}

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check API health",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cancel := ctx()
		defer cancel()

		h, err := newClient().GetHealth(c)
		if err != nil {
			return err
		}
		fmt.Printf("status: %s (database %s, %d users)\n", h.Status, h.Database, h.UserCount)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("uniflow", version)
	},
}
