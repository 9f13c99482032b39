package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"studybuddy/internal/util"
	"studybuddy/pkg/ai"
	"studybuddy/pkg/domain"
)

const quizSystemPrompt = "You are a study assistant that writes quizzes. Respond with a JSON object only, no prose and no markdown."

const gradeSystemPrompt = "You are a strict but fair grader. Respond with a JSON object only, no prose and no markdown."

// QuizInput is the quiz-generation payload.
type QuizInput struct {
	Title          string   `json:"title"`
	DocumentIDs    []string `json:"documentIds"`
	Model          string   `json:"model"`
	NumMCQs        int      `json:"numMCQs"`
	NumShortAnswer int      `json:"numShortAnswer"`
}

type quizPayload struct {
	MCQs []struct {
		QuestionText  string   `json:"questionText"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correctAnswer"`
	} `json:"mcqs"`
	ShortAnswers []struct {
		QuestionText  string `json:"questionText"`
		CorrectAnswer string `json:"correctAnswer"`
	} `json:"short_answers"`
}

type gradePayload struct {
	CorrectShortAnswers []int  `json:"correctShortAnswers"`
	Feedback            string `json:"feedback"`
}

// GenerateQuiz saves a placeholder quiz and fills in its questions in the
// background. The caller gets the placeholder (status "generating") back
// immediately and polls for the transition to "ongoing" or "error".
func (a *App) GenerateQuiz(ctx context.Context, user domain.User, notebookID string, in QuizInput) (domain.Quiz, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return domain.Quiz{}, err
	}
	if err := validateQuizCounts(in.NumMCQs, in.NumShortAnswer); err != nil {
		return domain.Quiz{}, err
	}
	if len(in.DocumentIDs) == 0 {
		return domain.Quiz{}, Invalid("at least one document is required")
	}
	gen, err := a.userGenerator(user, in.Model)
	if err != nil {
		return domain.Quiz{}, err
	}
	grounding, err := a.documentContext(in.DocumentIDs, notebookID, user.ID)
	if err != nil {
		return domain.Quiz{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Quiz " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	quiz := domain.Quiz{
		ID:                util.NewID(),
		NotebookID:        notebookID,
		UserID:            user.ID,
		Title:             title,
		SourceDocumentIDs: in.DocumentIDs,
		Model:             in.Model,
		Questions:         []domain.QuizQuestion{},
		Status:            domain.QuizGenerating,
		NumMCQs:           in.NumMCQs,
		NumShortAnswer:    in.NumShortAnswer,
		CreatedAt:         time.Now().UTC(),
	}
	if err := a.store.SaveQuiz(quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	a.touchNotebook(notebookID)

	a.background(func() {
		a.fillQuiz(context.Background(), gen, quiz.ID, in, grounding)
	})
	return quiz, nil
}

// fillQuiz runs the generation call and moves the quiz out of "generating"
// exactly once, to either "ongoing" or "error".
func (a *App) fillQuiz(ctx context.Context, gen ai.TextGenerator, quizID string, in QuizInput, grounding string) {
	questions, genErr := a.generateQuestions(ctx, gen, in, grounding)

	quiz, ok, err := a.store.GetQuiz(quizID)
	if err != nil || !ok {
		slog.Error("load quiz after generation", "quiz_id", quizID, "error", err)
		return
	}
	if quiz.Status != domain.QuizGenerating {
		// Already transitioned (deleted and recreated, or a racing fill).
		return
	}
	if genErr != nil {
		quiz.Status = domain.QuizError
		quiz.Feedback = "Quiz generation failed. Please try again."
		slog.Warn("quiz generation failed", "quiz_id", quizID, "error", genErr)
	} else {
		quiz.Status = domain.QuizOngoing
		quiz.Questions = questions
	}
	if err := a.store.SaveQuiz(quiz); err != nil {
		slog.Error("save generated quiz", "quiz_id", quizID, "error", err)
	}
}

func (a *App) generateQuestions(ctx context.Context, gen ai.TextGenerator, in QuizInput, grounding string) ([]domain.QuizQuestion, error) {
	raw, err := gen.Generate(ctx, quizSystemPrompt, nil, quizPrompt(in, grounding))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	var payload quizPayload
	if err := ai.DecodeJSON(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	if len(payload.MCQs) == 0 && len(payload.ShortAnswers) == 0 {
		return nil, fmt.Errorf("decode quiz: no questions in response")
	}

	questions := make([]domain.QuizQuestion, 0, len(payload.MCQs)+len(payload.ShortAnswers))
	for _, q := range payload.MCQs {
		if strings.TrimSpace(q.QuestionText) == "" || len(q.Options) < 2 || strings.TrimSpace(q.CorrectAnswer) == "" {
			return nil, fmt.Errorf("decode quiz: malformed multiple-choice question")
		}
		questions = append(questions, domain.QuizQuestion{
			Type:          domain.QuestionMCQ,
			QuestionText:  q.QuestionText,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	for _, q := range payload.ShortAnswers {
		if strings.TrimSpace(q.QuestionText) == "" {
			return nil, fmt.Errorf("decode quiz: malformed short-answer question")
		}
		questions = append(questions, domain.QuizQuestion{
			Type:          domain.QuestionShortAnswer,
			QuestionText:  q.QuestionText,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return questions, nil
}

// AttemptQuiz merges the user's answers into an ongoing quiz. Answers are
// keyed by question index.
func (a *App) AttemptQuiz(user domain.User, quizID string, answers map[int]string) (domain.Quiz, error) {
	quiz, err := a.getOwnedQuiz(user, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Status != domain.QuizOngoing {
		return domain.Quiz{}, Invalid("quiz is not open for answers")
	}
	for idx, answer := range answers {
		if idx < 0 || idx >= len(quiz.Questions) {
			return domain.Quiz{}, Invalid(fmt.Sprintf("no question at index %d", idx))
		}
		quiz.Questions[idx].UserAnswer = strings.TrimSpace(answer)
	}
	quiz.LastAttemptedAt = time.Now().UTC()
	if err := a.store.SaveQuiz(quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	return quiz, nil
}

// GradeQuiz scores an ongoing quiz once every question has an answer.
// Multiple-choice answers are compared locally; short answers are judged by
// a second model call. If that call fails the quiz is still completed with
// an MCQ-only score and a note in the feedback.
func (a *App) GradeQuiz(ctx context.Context, user domain.User, quizID string) (domain.Quiz, error) {
	quiz, err := a.getOwnedQuiz(user, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Status != domain.QuizOngoing {
		return domain.Quiz{}, Invalid("quiz is not open for grading")
	}
	for i, q := range quiz.Questions {
		if strings.TrimSpace(q.UserAnswer) == "" {
			return domain.Quiz{}, Invalid(fmt.Sprintf("question %d is unanswered", i+1))
		}
	}

	correct := 0
	var shorts []int
	for i, q := range quiz.Questions {
		switch q.Type {
		case domain.QuestionMCQ:
			if answersMatch(q.UserAnswer, q.CorrectAnswer) {
				correct++
			}
		case domain.QuestionShortAnswer:
			shorts = append(shorts, i)
		}
	}

	feedback := "Graded automatically."
	total := len(quiz.Questions)
	if len(shorts) > 0 {
		graded, gradeErr := a.gradeShortAnswers(ctx, user, quiz, shorts)
		if gradeErr != nil {
			// Model grading is best-effort; fall back to the MCQ score.
			slog.Warn("short-answer grading failed", "quiz_id", quiz.ID, "error", gradeErr)
			total = len(quiz.Questions) - len(shorts)
			feedback = "Short answers could not be graded and were excluded from the score."
		} else {
			// Model output: count each short answer at most once, whatever
			// the returned index list contains.
			counted := make(map[int]bool, len(shorts))
			for _, idx := range graded.CorrectShortAnswers {
				if counted[idx] {
					continue
				}
				for _, shortIdx := range shorts {
					if idx == shortIdx {
						counted[idx] = true
						correct++
						break
					}
				}
			}
			if strings.TrimSpace(graded.Feedback) != "" {
				feedback = graded.Feedback
			}
		}
	}

	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(correct) / float64(total)))
	}
	now := time.Now().UTC()
	quiz.Status = domain.QuizCompleted
	quiz.Score = &score
	quiz.Feedback = feedback
	quiz.CompletedAt = &now
	if err := a.store.SaveQuiz(quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	a.touchNotebook(quiz.NotebookID)
	return quiz, nil
}

// gradeShortAnswers asks the model which short answers are acceptable. The
// returned indices refer to positions in quiz.Questions.
func (a *App) gradeShortAnswers(ctx context.Context, user domain.User, quiz domain.Quiz, shorts []int) (gradePayload, error) {
	gen, err := a.userGenerator(user, quiz.Model)
	if err != nil {
		return gradePayload{}, err
	}
	var sb strings.Builder
	sb.WriteString("Judge each short answer below. ")
	sb.WriteString(`Respond with JSON: {"correctShortAnswers": [question indices whose answer is acceptable], "feedback": "one or two sentences for the student"}.`)
	sb.WriteString("\n\n")
	for _, idx := range shorts {
		q := quiz.Questions[idx]
		fmt.Fprintf(&sb, "Question %d: %s\nExpected: %s\nStudent answer: %s\n\n", idx, q.QuestionText, q.CorrectAnswer, q.UserAnswer)
	}
	raw, err := gen.Generate(ctx, gradeSystemPrompt, nil, sb.String())
	if err != nil {
		return gradePayload{}, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	var payload gradePayload
	if err := ai.DecodeJSON(raw, &payload); err != nil {
		return gradePayload{}, fmt.Errorf("decode grading: %w", err)
	}
	return payload, nil
}

// ListQuizzes returns the quizzes in an owned notebook.
func (a *App) ListQuizzes(user domain.User, notebookID string) ([]domain.Quiz, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return nil, err
	}
	return a.store.ListQuizzesByNotebook(notebookID)
}

// GetQuiz loads an owned quiz.
func (a *App) GetQuiz(user domain.User, quizID string) (domain.Quiz, error) {
	return a.getOwnedQuiz(user, quizID)
}

// DeleteQuiz removes an owned quiz.
func (a *App) DeleteQuiz(user domain.User, quizID string) error {
	quiz, err := a.getOwnedQuiz(user, quizID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteQuiz(quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	a.touchNotebook(quiz.NotebookID)
	return nil
}

func (a *App) getOwnedQuiz(user domain.User, quizID string) (domain.Quiz, error) {
	quiz, ok, err := a.store.GetQuiz(quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if !ok {
		return domain.Quiz{}, ErrNotFound
	}
	if quiz.UserID != user.ID {
		return domain.Quiz{}, ErrForbidden
	}
	return quiz, nil
}

func validateQuizCounts(numMCQs, numShortAnswer int) error {
	switch numMCQs {
	case 5, 10, 15, 20:
	default:
		return Invalid("numMCQs must be 5, 10, 15 or 20")
	}
	if numShortAnswer < 0 || numShortAnswer > 3 {
		return Invalid("numShortAnswer must be between 0 and 3")
	}
	return nil
}

func answersMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func quizPrompt(in QuizInput, grounding string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a quiz with exactly %d multiple-choice questions and %d short-answer questions from the study material below.\n", in.NumMCQs, in.NumShortAnswer)
	sb.WriteString(`Respond with JSON: {"mcqs": [{"questionText": "...", "options": ["..."], "correctAnswer": "..."}], "short_answers": [{"questionText": "...", "correctAnswer": "..."}]}.`)
	sb.WriteString(" Each multiple-choice question must have exactly 4 options and correctAnswer must be one of them.")
	sb.WriteString("\n\nStudy material:\n")
	sb.WriteString(grounding)
	return sb.String()
}
