package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"craftdesk.org/internal/client/credstore"
	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/client/session"
	"craftdesk.org/internal/client/stores"
	"craftdesk.org/internal/pm"
)

const usage = `usage: deskctl [-api URL] <command>

commands:
  login                 sign in and store credentials locally
  logout                sign out and clear stored credentials
  whoami                show the current user
  projects [status]     list projects, optionally filtered by status
  tasks [project-id]    list tasks, optionally for one project
  files <project-id>    list a project's files
  upload <project-id> <path>
                        attach a file to a project
  download <project-id> <file-id> <path>
                        save a project file locally
  suppliers             list suppliers
  users                 list users (admin)
`

func main() {
	log.SetFlags(0)
	apiURL := flag.String("api", envOr("CRAFTDESK_API_URL", "http://localhost:8080"), "API base URL")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	store, err := credstore.Open(credentialPath())
	if err != nil {
		log.Fatalf("open credential store: %v", err)
	}
	defer store.Close()

	gw := gateway.New(*apiURL, gateway.WithTimeout(15*time.Second))
	sess := session.NewManager(gw, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sess.Restore(ctx); err != nil {
		log.Fatalf("restore session: %v", err)
	}

	switch flag.Arg(0) {
	case "login":
		err = cmdLogin(ctx, sess)
	case "logout":
		err = sess.Logout(ctx)
	case "whoami":
		err = cmdWhoami(ctx, sess)
	case "projects":
		err = cmdProjects(ctx, gw, flag.Arg(1))
	case "tasks":
		err = cmdTasks(ctx, gw, flag.Arg(1))
	case "files":
		err = cmdFiles(ctx, gw, flag.Arg(1))
	case "upload":
		err = cmdUpload(ctx, gw, flag.Arg(1), flag.Arg(2))
	case "download":
		err = cmdDownload(ctx, gw, flag.Arg(1), flag.Arg(2), flag.Arg(3))
	case "suppliers":
		err = cmdSuppliers(ctx, gw)
	case "users":
		err = cmdUsers(ctx, gw)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func cmdLogin(ctx context.Context, sess *session.Manager) error {
	fmt.Print("username: ")
	reader := bufio.NewReader(os.Stdin)
	username, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	fmt.Print("password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return err
	}

	if err := sess.Login(ctx, strings.TrimSpace(username), string(password)); err != nil {
		return err
	}
	profile := sess.Profile()
	fmt.Printf("signed in as %s (%s)\n", profile.Username, profile.Role)
	return nil
}

func cmdWhoami(ctx context.Context, sess *session.Manager) error {
	if !sess.IsAuthenticated(ctx) {
		fmt.Println("not signed in")
		return nil
	}
	profile := sess.Profile()
	fmt.Printf("%s\t%s\t%s\n", profile.ID, profile.Username, profile.Role)
	return nil
}

func cmdProjects(ctx context.Context, gw *gateway.Client, status string) error {
	items, page, err := stores.NewProjectStore(gw).List(ctx, pm.ProjectFilter{Status: pm.ProjectStatus(status)})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tNAME\tCUSTOMER\tSTATUS\tQUOTED")
	for _, p := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", p.Number, p.Name, p.CustomerName, p.Status, float64(p.QuotedPrice)/100)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("page %d/%d, %d total\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func cmdTasks(ctx context.Context, gw *gateway.Client, projectID string) error {
	items, page, err := stores.NewTaskStore(gw).List(ctx, pm.TaskFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tASSIGNEE")
	for _, t := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.AssigneeID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("page %d/%d, %d total\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func cmdFiles(ctx context.Context, gw *gateway.Client, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	items, err := stores.NewFileStore(gw).List(ctx, projectID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSIZE\tUPLOADED")
	for _, f := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.ID, f.Filename, f.Size, f.CreatedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func cmdUpload(ctx context.Context, gw *gateway.Client, projectID, path string) error {
	if projectID == "" || path == "" {
		return fmt.Errorf("project id and file path are required")
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	created, err := stores.NewFileStore(gw).Upload(ctx, projectID, filepath.Base(path), src)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s (%d bytes) as %s\n", created.Filename, created.Size, created.ID)
	return nil
}

func cmdDownload(ctx context.Context, gw *gateway.Client, projectID, fileID, path string) error {
	if projectID == "" || fileID == "" || path == "" {
		return fmt.Errorf("project id, file id and destination path are required")
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := stores.NewFileStore(gw).Download(ctx, projectID, fileID, dst); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", path)
	return nil
}

func cmdSuppliers(ctx context.Context, gw *gateway.Client) error {
	items, _, err := stores.NewSupplierStore(gw).List(ctx, pm.SupplierFilter{})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tRATING\tACTIVE")
	for _, s := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", s.Name, s.Category, s.Rating, s.Active)
	}
	return w.Flush()
}

func cmdUsers(ctx context.Context, gw *gateway.Client) error {
	items, _, err := stores.NewUserStore(gw).List(ctx, 0, 0)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tFULL NAME\tROLE\tACTIVE")
	for _, u := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.Username, u.FullName, u.Role, u.Active)
	}
	return w.Flush()
}

func credentialPath() string {
	if path := os.Getenv("CRAFTDESK_CREDENTIALS"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "craftdesk-credentials.db"
	}
	dir := filepath.Join(home, ".craftdesk")
	_ = os.MkdirAll(dir, 0o700)
	return filepath.Join(dir, "credentials.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
