package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]
	client := NewAPIClient(apiURL)

	switch command {
	case "register":
		registerCmd(client, args)
	case "verify":
		verifyCmd(client, args)
	case "resend":
		resendCmd(client, args)
	case "login":
		loginCmd(client, args)
	case "refresh":
		refreshCmd(client, args)
	case "logout":
		logoutCmd(client, args)
	case "users":
		usersCmd(client, args)
	case "role":
		roleCmd(client, args)
	case "watch":
		watchCmd(client, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`authcli - Development tool for the account API

USAGE:
  authcli <command> [options]

COMMANDS:
  register  Create an account (the first account becomes Admin)
  verify    Confirm an email with the token from the verification link
  resend    Request a new verification email
  login     Log in and print the access and refresh tokens
  refresh   Rotate a refresh token
  logout    Revoke a refresh token
  users     List accounts (Admin)
  role      Change the role of an account (Admin)
  watch     Stream login and account activity (Admin)
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend URL (default: http://localhost:8080)

EXAMPLES:
  authcli register --name=Jane --email=jane@example.com --password=Passw0rd!
  authcli verify --token=<token from the link>
  authcli login --email=jane@example.com --password=Passw0rd!
  authcli refresh --token=<access token> --refresh=<refresh token>
  authcli users --token=<admin access token> --limit=20
  authcli role --token=<admin access token> --user=<id> --role=Admin
  authcli watch --token=<admin access token>`)
}

func fail(format string, args ...interface{}) {
	fmt.Printf("FAILED\n  Error: "+format+"\n", args...)
	os.Exit(1)
}

func require(name, value string) {
	if value == "" {
		fmt.Printf("Error: --%s is required\n", name)
		os.Exit(1)
	}
}

func registerCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	fs.Parse(args)
	require("email", *email)
	require("password", *password)

	fmt.Print("Registering... ")
	msg, err := client.Register(*name, *email, *password)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println("OK")
	fmt.Printf("  %s\n", msg.Message)
}

func verifyCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	token := fs.String("token", "", "Verification token")
	fs.Parse(args)
	require("token", *token)

	fmt.Print("Verifying email... ")
	msg, err := client.VerifyEmail(*token)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println("OK")
	fmt.Printf("  %s\n", msg.Message)
}

func resendCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("resend", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	fs.Parse(args)
	require("email", *email)

	msg, err := client.ResendVerification(*email)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println(msg.Message)
}

func printSession(session *Session) {
	fmt.Println("OK")
	fmt.Printf("  Role:          %s\n", session.Role)
	fmt.Printf("  Expires:       %s\n", session.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Access token:  %s\n", session.Token)
	fmt.Printf("  Refresh token: %s\n", session.RefreshToken)
}

func loginCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	fs.Parse(args)
	require("email", *email)
	require("password", *password)

	fmt.Print("Logging in... ")
	session, err := client.Login(*email, *password)
	if err != nil {
		fail("%v", err)
	}
	printSession(session)
}

func refreshCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	token := fs.String("token", "", "Last access token, may be expired")
	refresh := fs.String("refresh", "", "Refresh token")
	fs.Parse(args)
	require("token", *token)
	require("refresh", *refresh)

	fmt.Print("Refreshing session... ")
	session, err := client.Refresh(*token, *refresh)
	if err != nil {
		fail("%v", err)
	}
	printSession(session)
}

func logoutCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	refresh := fs.String("refresh", "", "Refresh token")
	fs.Parse(args)
	require("refresh", *refresh)

	msg, err := client.Logout(*token, *refresh)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println(msg.Message)
}

func usersCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	token := fs.String("token", "", "Admin access token")
	limit := fs.Int("limit", 50, "Page size")
	offset := fs.Int("offset", 0, "Page offset")
	fs.Parse(args)
	require("token", *token)

	users, err := client.ListUsers(*token, *limit, *offset)
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("%-36s  %-6s  %-8s  %s\n", "ID", "ROLE", "VERIFIED", "EMAIL")
	for _, u := range users {
		fmt.Printf("%-36s  %-6s  %-8t  %s\n", u.ID, u.Role, u.IsEmailConfirmed, u.Email)
	}
}

func roleCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("role", flag.ExitOnError)
	token := fs.String("token", "", "Admin access token")
	userID := fs.String("user", "", "User id")
	role := fs.String("role", "", "Admin or User")
	fs.Parse(args)
	require("token", *token)
	require("user", *userID)
	require("role", *role)

	fmt.Print("Changing role... ")
	user, err := client.ChangeRole(*token, *userID, *role)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("OK (%s is now %s)\n", user.Email, user.Role)
}

func watchCmd(client *APIClient, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	token := fs.String("token", "", "Admin access token")
	fs.Parse(args)
	require("token", *token)

	fmt.Println("=== Watching account activity (Ctrl+C to stop) ===")
	err := client.WatchActivity(*token, func(msgType string, payload json.RawMessage) {
		fmt.Printf("[%s] %s\n", msgType, string(payload))
	})
	if err != nil {
		fail("%v", err)
	}
}
