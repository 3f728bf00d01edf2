// testclient exercises a running gradeq server end-to-end: it submits a
// small program, waits for the result, and prints it.
//
// Usage:
//
//	go run ./cmd/testclient [server-url]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/capsulelabs/gradeq/client"
)

func main() {
	baseURL := "http://localhost:8080"
	if len(os.Args) > 1 {
		baseURL = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c := client.New(baseURL)

	health, err := c.Health(ctx)
	if err != nil {
		log.Fatalf("server not healthy: %v", err)
	}
	log.Printf("server %s, backends: %v", health.Status, health.Backends)

	exec, err := c.Execute(ctx, "python", client.ExecuteRequest{
		Code: "print(sum(range(10)))",
	})
	if err != nil {
		log.Fatalf("execute: %v", err)
	}
	log.Printf("queued job %s", exec.JobID)

	job, err := c.WaitForResult(ctx, exec.JobID, nil)
	if err != nil {
		log.Fatalf("wait: %v", err)
	}
	if job.Status == "failed" {
		log.Fatalf("job failed: %+v", job.Error)
	}
	fmt.Printf("stdout: %s", job.Result.Stdout)

	summary, err := c.Grade(ctx, client.GradeRequest{
		Language: "python",
		Code:     "def add(a, b):\n    return a + b\n",
		Tests: []client.GradeTestCase{
			{Description: "adds small numbers", InputArgs: []any{2, 3}, Expected: 5},
			{Description: "adds negatives", InputArgs: []any{-1, -2}, Expected: -3},
		},
	})
	if err != nil {
		log.Fatalf("grade: %v", err)
	}
	fmt.Printf("graded: %d/%d passed\n", summary.Passed, summary.Total)
}
