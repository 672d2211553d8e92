package api

import "github.com/felixgeelhaar/chatsql/internal/domain"

// The fixed demo dataset. Each constructor returns a fresh copy so callers
// may mutate what they get.

const mockSchemaName = "employees"

func mockSchemaRef() domain.DatabaseSchema {
	return domain.DatabaseSchema{
		ID:          1,
		Name:        mockSchemaName,
		DisplayName: "Employees DB",
		DBName:      mockSchemaName,
	}
}

// MockSchemas returns the demo schema list
func MockSchemas() []domain.DatabaseSchema {
	return []domain.DatabaseSchema{
		{
			ID:            1,
			Name:          mockSchemaName,
			DisplayName:   "Employees DB",
			Description:   "Demo employees schema",
			ExerciseCount: 3,
		},
	}
}

// MockExercises returns the demo exercise list in display order
func MockExercises() []domain.Exercise {
	return []domain.Exercise{
		{
			ID:           1,
			Title:        "Two Sum (SQL demo)",
			Description:  "Find pairs of employees in the same department.",
			Difficulty:   domain.DifficultyEasy,
			InitialQuery: "SELECT * FROM employees",
			Hints:        []domain.Hint{{Level: 1, Text: "Start with a simple SELECT"}},
			Schema:       mockSchemaRef(),
			Tags:         []string{"select", "join"},
		},
		{
			ID:           2,
			Title:        "Count by Department",
			Description:  "Count number of employees per department.",
			Difficulty:   domain.DifficultyEasy,
			InitialQuery: "SELECT dept, COUNT(*) FROM employees GROUP BY dept",
			Hints:        []domain.Hint{},
			Schema:       mockSchemaRef(),
			Tags:         []string{"aggregate"},
		},
		{
			ID:           3,
			Title:        "Top Salaries",
			Description:  "Find employees with highest salaries in each department.",
			Difficulty:   domain.DifficultyMedium,
			InitialQuery: "SELECT * FROM employees",
			Hints:        []domain.Hint{},
			Schema:       mockSchemaRef(),
			Tags:         []string{"window", "join"},
		},
	}
}

// MockExercise returns the demo exercise with id, or the first one when the
// id is unknown
func MockExercise(id int64) domain.Exercise {
	exercises := MockExercises()
	if ex, ok := domain.FindExercise(exercises, id); ok {
		return ex
	}
	return exercises[0]
}

// MockQueryResult returns the demo execution result
func MockQueryResult() domain.QueryResult {
	return domain.QueryResult{
		Success: true,
		Columns: []string{"id", "name", "dept"},
		Rows: [][]any{
			{1, "Alice", "Engineering"},
			{2, "Bob", "Engineering"},
			{3, "Carol", "HR"},
		},
		RowCount:      3,
		ExecutionTime: 12,
	}
}

// MockSubmitResult returns the demo grading result
func MockSubmitResult() domain.SubmitResult {
	userResult := MockQueryResult()
	return domain.SubmitResult{
		Correct:    true,
		Message:    "All tests passed (mock).",
		UserResult: &userResult,
	}
}

// MockAIResponse returns the demo assistant reply
func MockAIResponse() domain.AIResponse {
	return domain.AIResponse{
		Response: "Based on your question, here's what I found: You have completed 3 exercises this month. (mock data)",
		SQLQuery: "SELECT COUNT(*) FROM submissions WHERE user_id=1 AND status='correct' AND MONTH(created_at)=MONTH(CURRENT_DATE)",
		QueryResult: &domain.QueryResult{
			Success:  true,
			Columns:  []string{"count"},
			Rows:     [][]any{{3}},
			RowCount: 1,
		},
		Executed: true,
		Intent:   "data_query",
	}
}
