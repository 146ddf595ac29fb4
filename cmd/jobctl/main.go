package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hostforge/internal/domain"
	"hostforge/internal/infra"
	"hostforge/internal/store"
)

// jobctl inspects provisioning jobs: state, current step and the durable log
// trail. Point DATABASE_URL at the environment you want to inspect.
func main() {
	var (
		jobFlag     string
		projectFlag string
		logsFlag    bool
	)

	flag.StringVar(&jobFlag, "job", "", "job ID to inspect (UUID)")
	flag.StringVar(&projectFlag, "project", "", "project ID to list jobs for (UUID)")
	flag.BoolVar(&logsFlag, "logs", true, "print the job's log trail")
	flag.Parse()

	jobID := strings.TrimSpace(jobFlag)
	projectID := strings.TrimSpace(projectFlag)
	if jobID == "" && projectID == "" {
		exitWithError(errors.New("either -job or -project must be provided"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "jobctl")
	st := store.New(pool, logger)

	if projectID != "" {
		jobs, err := st.ListJobsByProject(ctx, projectID)
		if err != nil {
			exitWithError(fmt.Errorf("list jobs: %w", err))
		}
		if len(jobs) == 0 {
			fmt.Printf("no jobs for project %s\n", projectID)
			return
		}
		for i := range jobs {
			printJob(&jobs[i])
			fmt.Println()
		}
		return
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			exitWithError(fmt.Errorf("job %s not found", jobID))
		}
		exitWithError(fmt.Errorf("get job: %w", err))
	}
	printJob(job)

	if logsFlag {
		entries, err := st.ListJobLogs(ctx, jobID)
		if err != nil {
			exitWithError(fmt.Errorf("list job logs: %w", err))
		}
		fmt.Println()
		for _, e := range entries {
			fmt.Printf("%s [%s] %s\n", e.Timestamp.Format(time.RFC3339), strings.ToUpper(string(e.Level)), e.Message)
		}
	}
}

func printJob(j *domain.Job) {
	fmt.Printf("job      %s\n", j.ID)
	fmt.Printf("project  %s\n", j.ProjectID)
	fmt.Printf("type     %s\n", j.Type)
	fmt.Printf("state    %s\n", j.State)
	if j.Step != "" {
		fmt.Printf("step     %s\n", j.Step)
	}
	if j.Error != "" {
		fmt.Printf("error    %s\n", j.Error)
	}
	if j.StartedAt != nil {
		fmt.Printf("started  %s\n", j.StartedAt.Format(time.RFC3339))
	}
	if j.FinishedAt != nil {
		fmt.Printf("finished %s\n", j.FinishedAt.Format(time.RFC3339))
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "jobctl: %v\n", err)
	os.Exit(1)
}
