package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"craftdesk.org/internal/client/credstore"
	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/client/session"
	"craftdesk.org/internal/client/stores"
	"craftdesk.org/internal/pm"
)

func main() {
	baseURL := os.Getenv("CRAFTDESK_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	username := os.Getenv("CRAFTDESK_SMOKE_USER")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("CRAFTDESK_SMOKE_PASSWORD")
	if password == "" {
		log.Fatal("CRAFTDESK_SMOKE_PASSWORD is required")
	}

	credDir, err := os.MkdirTemp("", "craftdesk-smoke-")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(credDir)

	store, err := credstore.Open(filepath.Join(credDir, "credentials.db"))
	if err != nil {
		log.Fatalf("credential store: %v", err)
	}
	defer store.Close()

	gw := gateway.New(baseURL, gateway.WithTimeout(10*time.Second))
	sess := session.NewManager(gw, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sess.Login(ctx, username, password); err != nil {
		log.Fatalf("login: %v", err)
	}
	if !sess.IsAuthenticated(ctx) {
		log.Fatal("authenticated session expected after login")
	}

	projects := stores.NewProjectStore(gw)
	tasks := stores.NewTaskStore(gw)

	project, err := projects.Create(ctx, stores.ProjectInput{
		Name:         fmt.Sprintf("smoke-%d", time.Now().Unix()),
		CustomerName: "Smoke Test Customer",
		QuotedPrice:  125_000,
	})
	if err != nil {
		log.Fatalf("create project: %v", err)
	}

	cached, _ := projects.Cached()
	if len(cached) == 0 || cached[0].ID != project.ID {
		log.Fatal("created project not at front of cached collection")
	}

	task, err := tasks.Create(ctx, stores.TaskInput{
		ProjectID: project.ID,
		Title:     "smoke task",
	})
	if err != nil {
		log.Fatalf("create task: %v", err)
	}

	files := stores.NewFileStore(gw)
	uploaded, err := files.Upload(ctx, project.ID, "smoke.txt", strings.NewReader("smoke artifact"))
	if err != nil {
		log.Fatalf("upload file: %v", err)
	}
	var downloaded bytes.Buffer
	if err := files.Download(ctx, project.ID, uploaded.ID, &downloaded); err != nil {
		log.Fatalf("download file: %v", err)
	}
	if downloaded.String() != "smoke artifact" {
		log.Fatalf("downloaded %q, want the uploaded bytes", downloaded.String())
	}
	if err := files.Delete(ctx, project.ID, uploaded.ID); err != nil {
		log.Fatalf("delete file: %v", err)
	}

	if _, err := projects.PatchStatus(ctx, project.ID, pm.StatusQuoting); err != nil {
		log.Fatalf("status change: %v", err)
	}
	if _, err := projects.PatchStatus(ctx, project.ID, pm.StatusCancelled); err != nil {
		log.Fatalf("cancel: %v", err)
	}
	if err := tasks.Delete(ctx, task.ID); err != nil {
		log.Fatalf("delete task: %v", err)
	}
	if err := projects.Delete(ctx, project.ID); err != nil {
		log.Fatalf("delete project: %v", err)
	}

	if err := sess.Logout(ctx); err != nil {
		log.Fatalf("logout: %v", err)
	}
	if sess.IsAuthenticated(ctx) {
		log.Fatal("session should be anonymous after logout")
	}

	fmt.Printf("✅ craftdesk smoke test passed: project=%s\n", project.Number)
}
