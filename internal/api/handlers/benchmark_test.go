package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/validation"
	"github.com/hugh/projectflow/internal/database/models"
)

func benchTasks(n int) []models.Task {
	statuses := []models.TaskStatus{models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone}
	priorities := []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical}
	past := time.Now().Add(-48 * time.Hour)

	tasks := make([]models.Task, n)
	for i := range tasks {
		tasks[i] = models.Task{
			Base:        models.Base{ID: uuid.NewString()},
			Title:       "Task " + string(rune('A'+i%26)),
			Status:      statuses[i%len(statuses)],
			Priority:    priorities[i%len(priorities)],
			ProjectID:   "project-1",
			CreatedByID: "user-1",
			Progress:    i % 101,
			Position:    i,
			CreatedAt:   time.Now(),
		}
		if i%5 == 0 {
			tasks[i].DueDate = &past
		}
	}
	return tasks
}

// BenchmarkJSONSerialization benchmarks JSON encoding of common response types
func BenchmarkJSONSerialization(b *testing.B) {
	b.Run("ErrorResponse", func(b *testing.B) {
		resp := dto.ErrorResponse{
			Message: "Validation failed",
			Details: map[string]string{
				"name":  "is required",
				"color": "must be a hex color",
			},
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("ProjectStats", func(b *testing.B) {
		resp := projectStats(benchTasks(100), 5, time.Now())
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("TaskList", func(b *testing.B) {
		tasks := benchTasks(50)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(tasks)
		}
	})
}

// BenchmarkRequestParsing benchmarks decoding plus validation of request bodies
func BenchmarkRequestParsing(b *testing.B) {
	b.Run("CreateProjectRequest", func(b *testing.B) {
		body := `{"name":"Launch","description":"Q3 launch","color":"#3b82f6","allowedEmails":["a@x.com","b@x.com"]}`
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.CreateProjectRequest
			_ = validation.Decode(strings.NewReader(body), &req)
		}
	})

	b.Run("CreateProjectRequestInvalid", func(b *testing.B) {
		body := `{"name":"","color":"blue","allowedEmails":["nope"]}`
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.CreateProjectRequest
			_ = validation.Decode(strings.NewReader(body), &req)
		}
	})

	b.Run("UpdateTaskRequestClearDueDate", func(b *testing.B) {
		body := []byte(`{"status":"done","dueDate":null,"progress":100}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.UpdateTaskRequest
			_ = validation.Decode(bytes.NewReader(body), &req)
		}
	})
}

func BenchmarkProjectStats(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		tasks := benchTasks(n)
		now := time.Now()
		b.Run(fmt.Sprintf("tasks=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = projectStats(tasks, 3, now)
			}
		})
	}
}

// BenchmarkWriteJSON benchmarks the writeJSON helper function
func BenchmarkWriteJSON(b *testing.B) {
	b.Run("SmallResponse", func(b *testing.B) {
		resp := dto.SuccessResponse{Success: true, Message: "Logged out"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, resp)
		}
	})

	b.Run("LargeResponse", func(b *testing.B) {
		tasks := benchTasks(200)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, tasks)
		}
	})
}
