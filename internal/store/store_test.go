package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	orgID     string
	tutorID   string
	test      model.Test
	questions []model.Question
}

func seedTest(t *testing.T, s *Store, n int) fixture {
	t.Helper()
	ctx := context.Background()
	orgID, err := s.CreateOrganization(ctx, "Test Prep Co")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	tutorID, err := s.CreateUser(ctx, model.User{
		OrgID: orgID, Username: "tutor", DisplayName: "Tutor", PasswordHash: "x",
		Role: model.UserRoleTutor, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	var qs []model.Question
	for i := 1; i <= n; i++ {
		qs = append(qs, model.Question{
			QuestionNumber: i,
			Text:           fmt.Sprintf("Question %d", i),
			CorrectAnswer:  model.ChoiceA,
			Section:        model.SectionMath,
			ConceptTag:     "linear equations",
		})
	}
	test, err := s.CreateTest(ctx, model.Test{OrgID: orgID, Name: "Practice 1", CreatedBy: tutorID}, qs)
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	stored, err := s.ListQuestions(ctx, test.ID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	return fixture{orgID: orgID, tutorID: tutorID, test: test, questions: stored}
}

func seedSession(t *testing.T, s *Store, f fixture, pin string) model.Session {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), model.Session{
		OrgID: f.orgID, TestID: f.test.ID, CreatedBy: f.tutorID, PIN: pin,
		Status: model.StatusLobby, TutorCount: 2, RetestQuestionCount: 20,
		TestDurationMinutes: 180, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func seedStudent(t *testing.T, s *Store, f fixture, sessionID, name string) model.Student {
	t.Helper()
	ctx := context.Background()
	st, err := s.CreateStudent(ctx, f.orgID, name)
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	if err := s.AddSessionStudent(ctx, sessionID, st.ID, time.Now()); err != nil {
		t.Fatalf("AddSessionStudent: %v", err)
	}
	return st
}

func TestTestsAndQuestions(t *testing.T) {
	s := newTestStore(t)
	f := seedTest(t, s, 3)

	if f.test.TotalQuestions != 3 {
		t.Fatalf("TotalQuestions = %d, want 3", f.test.TotalQuestions)
	}
	if len(f.questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(f.questions))
	}
	for i, q := range f.questions {
		if q.QuestionNumber != i+1 {
			t.Errorf("question %d has number %d", i, q.QuestionNumber)
		}
	}

	q, err := s.GetQuestion(context.Background(), f.questions[1].ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Text != "Question 2" || q.CorrectAnswer != model.ChoiceA || q.Section != model.SectionMath {
		t.Errorf("unexpected question: %+v", q)
	}

	_, err = s.GetQuestion(context.Background(), "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetQuestion(missing) err = %v, want ErrNotFound", err)
	}
}

func TestCounterpartCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)
	qid := f.questions[0].ID

	c, err := s.GetCounterpart(ctx, qid)
	if err != nil {
		t.Fatalf("GetCounterpart: %v", err)
	}
	if c != nil {
		t.Fatalf("expected no counterpart yet, got %+v", c)
	}

	want := model.Counterpart{QuestionText: "Solve 2x = 4", AnswerA: "2", AnswerB: "4", AnswerC: "1", AnswerD: "8", CorrectAnswer: model.ChoiceA}
	if err := s.SaveCounterpart(ctx, qid, want); err != nil {
		t.Fatalf("SaveCounterpart: %v", err)
	}
	c, err = s.GetCounterpart(ctx, qid)
	if err != nil {
		t.Fatalf("GetCounterpart: %v", err)
	}
	if c == nil || *c != want {
		t.Fatalf("counterpart = %+v, want %+v", c, want)
	}

	if err := s.SaveCounterpart(ctx, "missing", want); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("SaveCounterpart(missing) err = %v, want ErrNotFound", err)
	}
}

func TestLobbyPINUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)

	first := seedSession(t, s, f, "123456")
	_, err := s.CreateSession(ctx, model.Session{
		OrgID: f.orgID, TestID: f.test.ID, CreatedBy: f.tutorID, PIN: "123456",
		Status: model.StatusLobby, TutorCount: 1, CreatedAt: time.Now(),
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate lobby PIN err = %v, want ErrConflict", err)
	}

	first.Status = model.StatusTesting
	if err := s.SwapSessionState(ctx, first, model.StatusLobby); err != nil {
		t.Fatalf("SwapSessionState: %v", err)
	}
	seedSession(t, s, f, "123456")

	found, err := s.FindJoinableSession(ctx, "123456")
	if err != nil {
		t.Fatalf("FindJoinableSession: %v", err)
	}
	if found.PIN != "123456" {
		t.Errorf("found PIN %q", found.PIN)
	}
	if _, err := s.FindJoinableSession(ctx, "000000"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown PIN err = %v, want ErrNotFound", err)
	}
}

func TestSwapSessionState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)
	sess := seedSession(t, s, f, "111111")

	started := time.Now()
	next := sess
	next.Status = model.StatusTesting
	next.TestStartedAt = &started
	if err := s.SwapSessionState(ctx, next, model.StatusLobby); err != nil {
		t.Fatalf("SwapSessionState: %v", err)
	}

	// A second writer still expecting lobby loses.
	stale := sess
	stale.Status = model.StatusTesting
	if err := s.SwapSessionState(ctx, stale, model.StatusLobby); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("stale swap err = %v, want ErrConflict", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.StatusTesting {
		t.Errorf("status = %s, want testing", got.Status)
	}
	if got.TestStartedAt == nil {
		t.Error("expected test_started_at to be set")
	}

	missing := next
	missing.ID = "missing"
	if err := s.SwapSessionState(ctx, missing, model.StatusTesting); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
}

func TestSessionStudents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)
	sess := seedSession(t, s, f, "222222")

	ana := seedStudent(t, s, f, sess.ID, "Ana")
	if err := s.AddSessionStudent(ctx, sess.ID, ana.ID, time.Now()); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second join err = %v, want ErrConflict", err)
	}
	if _, err := s.CreateStudent(ctx, f.orgID, "Ana"); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate student name err = %v, want ErrConflict", err)
	}

	if err := s.MarkTestSubmitted(ctx, sess.ID, ana.ID, time.Now()); err != nil {
		t.Fatalf("MarkTestSubmitted: %v", err)
	}
	ss, err := s.GetSessionStudent(ctx, sess.ID, ana.ID)
	if err != nil {
		t.Fatalf("GetSessionStudent: %v", err)
	}
	if !ss.TestSubmitted || ss.TestSubmittedAt == nil || ss.StudentName != "Ana" {
		t.Errorf("unexpected roster entry: %+v", ss)
	}

	roster, err := s.ListSessionStudents(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListSessionStudents: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster size %d, want 1", len(roster))
	}
}

func TestAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 3)
	sess := seedSession(t, s, f, "333333")
	st := seedStudent(t, s, f, sess.ID, "Ben")

	choice := model.ChoiceB
	wrong := false
	a := model.Answer{SessionID: sess.ID, StudentID: st.ID, QuestionID: f.questions[0].ID,
		SelectedAnswer: &choice, IsCorrect: &wrong, AnsweredAt: time.Now()}
	if err := s.UpsertAnswer(ctx, MainAnswers, a); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}

	// Changing the answer replaces the row.
	choice2 := model.ChoiceA
	right := true
	a.SelectedAnswer, a.IsCorrect = &choice2, &right
	if err := s.UpsertAnswer(ctx, MainAnswers, a); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}

	ids := []string{f.questions[0].ID, f.questions[1].ID, f.questions[2].ID}
	filled, err := s.FillUnanswered(ctx, sess.ID, st.ID, ids, time.Now())
	if err != nil {
		t.Fatalf("FillUnanswered: %v", err)
	}
	if filled != 2 {
		t.Errorf("filled = %d, want 2", filled)
	}

	answers, err := s.ListAnswers(ctx, MainAnswers, sess.ID, st.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}
	for _, ans := range answers {
		if ans.QuestionID == f.questions[0].ID {
			if ans.SelectedAnswer == nil || *ans.SelectedAnswer != model.ChoiceA || ans.IsCorrect == nil || !*ans.IsCorrect {
				t.Errorf("answered question not preserved: %+v", ans)
			}
			continue
		}
		if ans.SelectedAnswer != nil || ans.IsCorrect == nil || *ans.IsCorrect {
			t.Errorf("filled answer should be blank and incorrect: %+v", ans)
		}
	}

	missed, err := s.MissedQuestionIDs(ctx, sess.ID, st.ID)
	if err != nil {
		t.Fatalf("MissedQuestionIDs: %v", err)
	}
	if len(missed) != 2 || missed[0] != f.questions[1].ID || missed[1] != f.questions[2].ID {
		t.Errorf("missed = %v", missed)
	}

	retest, err := s.ListAnswers(ctx, RetestAnswers, sess.ID, st.ID)
	if err != nil {
		t.Fatalf("ListAnswers(retest): %v", err)
	}
	if len(retest) != 0 {
		t.Errorf("retest answers leaked from main table: %d", len(retest))
	}

	if err := s.UpsertAnswer(ctx, AnswerTable("sessions"), a); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("unknown table err = %v, want ErrInvalid", err)
	}
}

func TestSaveRetestIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 3)
	sess := seedSession(t, s, f, "444444")
	st := seedStudent(t, s, f, sess.ID, "Cy")

	items := []model.RetestQuestion{
		{QuestionID: f.questions[2].ID, Source: model.SourceMissed, Order: 1},
		{QuestionID: f.questions[0].ID, Source: model.SourcePadding, Order: 2},
	}
	created, err := s.SaveRetest(ctx, sess.ID, st.ID, items, time.Now())
	if err != nil {
		t.Fatalf("SaveRetest: %v", err)
	}
	if !created {
		t.Fatal("first SaveRetest should create rows")
	}

	created, err = s.SaveRetest(ctx, sess.ID, st.ID, items, time.Now())
	if err != nil {
		t.Fatalf("second SaveRetest: %v", err)
	}
	if created {
		t.Fatal("second SaveRetest should be a no-op")
	}

	n, err := s.CountRetestQuestions(ctx, sess.ID, st.ID)
	if err != nil {
		t.Fatalf("CountRetestQuestions: %v", err)
	}
	if n != 2 {
		t.Errorf("retest rows = %d, want 2", n)
	}

	list, err := s.ListRetestQuestions(ctx, sess.ID, st.ID)
	if err != nil {
		t.Fatalf("ListRetestQuestions: %v", err)
	}
	if list[0].QuestionID != f.questions[2].ID || list[0].Source != model.SourceMissed {
		t.Errorf("first retest question = %+v", list[0])
	}
}

func TestLessonGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)
	sess := seedSession(t, s, f, "555555")
	a := seedStudent(t, s, f, sess.ID, "Ana")
	b := seedStudent(t, s, f, sess.ID, "Ben")

	indep, err := s.CreateLessonGroup(ctx, model.LessonGroup{
		SessionID: sess.ID, GroupType: model.GroupIndependent, ConceptFocus: "mixed",
		Members: []model.Member{{StudentID: b.ID}},
	})
	if err != nil {
		t.Fatalf("CreateLessonGroup: %v", err)
	}
	tutor, err := s.CreateLessonGroup(ctx, model.LessonGroup{
		SessionID: sess.ID, GroupType: model.GroupTutor1, ConceptFocus: "linear equations",
		Members: []model.Member{{StudentID: a.ID}},
	})
	if err != nil {
		t.Fatalf("CreateLessonGroup: %v", err)
	}

	guide := "Start with balancing."
	if _, err := s.SaveLessonPlan(ctx, model.LessonPlan{SessionID: sess.ID, GroupID: tutor.ID, TutorGuide: &guide}); err != nil {
		t.Fatalf("SaveLessonPlan: %v", err)
	}
	problems := []model.PracticeProblem{{ID: "p1", Text: "1+1?", CorrectAnswer: model.ChoiceB, Difficulty: 1}}
	if _, err := s.SaveLessonPlan(ctx, model.LessonPlan{SessionID: sess.ID, GroupID: indep.ID, PracticeProblems: problems}); err != nil {
		t.Fatalf("SaveLessonPlan: %v", err)
	}

	groups, err := s.ListLessonGroups(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListLessonGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].GroupType != model.GroupTutor1 || groups[1].GroupType != model.GroupIndependent {
		t.Errorf("group order = %s, %s", groups[0].GroupType, groups[1].GroupType)
	}
	if groups[0].Plan == nil || groups[0].Plan.TutorGuide == nil || *groups[0].Plan.TutorGuide != guide {
		t.Errorf("tutor plan = %+v", groups[0].Plan)
	}
	if groups[1].Plan == nil || len(groups[1].Plan.PracticeProblems) != 1 {
		t.Errorf("independent plan = %+v", groups[1].Plan)
	}
	if len(groups[0].Members) != 1 || groups[0].Members[0].Name != "Ana" {
		t.Errorf("tutor members = %+v", groups[0].Members)
	}

	g, err := s.GroupForStudent(ctx, sess.ID, b.ID)
	if err != nil {
		t.Fatalf("GroupForStudent: %v", err)
	}
	if g.GroupType != model.GroupIndependent {
		t.Errorf("Ben's group = %s", g.GroupType)
	}

	if err := s.ClearLessonGroups(ctx, sess.ID); err != nil {
		t.Fatalf("ClearLessonGroups: %v", err)
	}
	groups, err = s.ListLessonGroups(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListLessonGroups: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups after clear, got %d", len(groups))
	}
	if _, err := s.GroupForStudent(ctx, sess.ID, a.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GroupForStudent after clear err = %v", err)
	}
}

func TestAnalysisJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.GetJob(ctx, "sess"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetJob before start err = %v", err)
	}
	if err := s.StartJob(ctx, "sess", now); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	steps := []struct {
		status   model.AnalysisStatus
		progress int
		applied  bool
	}{
		{model.AnalysisGrading, 10, true},
		{model.AnalysisClustering, 50, true},
		{model.AnalysisAnalyzing, 30, false},
		{model.AnalysisComplete, 100, true},
	}
	for _, st := range steps {
		applied, err := s.AdvanceJob(ctx, "sess", st.status, st.progress, now)
		if err != nil {
			t.Fatalf("AdvanceJob(%s): %v", st.status, err)
		}
		if applied != st.applied {
			t.Errorf("AdvanceJob(%s) applied = %v, want %v", st.status, applied, st.applied)
		}
	}

	j, err := s.GetJob(ctx, "sess")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != model.AnalysisComplete || j.Progress != 100 || j.CompletedAt == nil {
		t.Errorf("job = %+v", j)
	}

	// A re-run resets the job; a failure keeps progress and blocks advances.
	if err := s.StartJob(ctx, "sess", now); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if _, err := s.AdvanceJob(ctx, "sess", model.AnalysisGrading, 10, now); err != nil {
		t.Fatalf("AdvanceJob: %v", err)
	}
	if err := s.FailJob(ctx, "sess", "generator timeout", now); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if applied, _ := s.AdvanceJob(ctx, "sess", model.AnalysisAnalyzing, 30, now); applied {
		t.Error("failed job should not advance")
	}
	j, _ = s.GetJob(ctx, "sess")
	if j.Status != model.AnalysisError || j.Progress != 10 || j.ErrorMessage == nil || *j.ErrorMessage != "generator timeout" {
		t.Errorf("failed job = %+v", j)
	}
}

func TestDeleteSessionCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 2)
	sess := seedSession(t, s, f, "666666")
	st := seedStudent(t, s, f, sess.ID, "Dee")

	if _, err := s.FillUnanswered(ctx, sess.ID, st.ID, []string{f.questions[0].ID}, time.Now()); err != nil {
		t.Fatalf("FillUnanswered: %v", err)
	}
	if _, err := s.SaveRetest(ctx, sess.ID, st.ID, []model.RetestQuestion{{QuestionID: f.questions[0].ID, Source: model.SourceMissed, Order: 1}}, time.Now()); err != nil {
		t.Fatalf("SaveRetest: %v", err)
	}
	if _, err := s.CreateLessonGroup(ctx, model.LessonGroup{SessionID: sess.ID, GroupType: model.GroupIndependent, Members: []model.Member{{StudentID: st.ID}}}); err != nil {
		t.Fatalf("CreateLessonGroup: %v", err)
	}
	if err := s.StartJob(ctx, sess.ID, time.Now()); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := s.SaveReport(ctx, sess.ID, st.ID, model.ReportSummary{StudentName: "Dee"}, time.Now()); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := s.GetSession(ctx, sess.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("session still present: %v", err)
	}
	for _, table := range []string{"student_answers", "retest_questions", "retest_assemblies", "session_students", "analysis_jobs", "lesson_groups", "progress_reports"} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE session_id = ?`, sess.ID).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s has %d leftover rows", table, n)
		}
	}

	if err := s.DeleteSession(ctx, sess.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)
	sess := seedSession(t, s, f, "777777")
	st := seedStudent(t, s, f, sess.ID, "Eve")

	r := model.ReportSummary{StudentName: "Eve", TestScore: model.ScoreLine{Correct: 1, Total: 2, Percentage: 50}, Improvement: 25}
	if err := s.SaveReport(ctx, sess.ID, st.ID, r, time.Now()); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	r.Improvement = 30
	if err := s.SaveReport(ctx, sess.ID, st.ID, r, time.Now()); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := s.GetReport(ctx, sess.ID, st.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Improvement != 30 || got.TestScore.Percentage != 50 {
		t.Errorf("report = %+v", got)
	}

	list, err := s.ListReports(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 1 || list[0].StudentID != st.ID {
		t.Errorf("reports = %+v", list)
	}
}

func TestUsersAndAuthSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedTest(t, s, 1)

	if _, err := s.CreateUser(ctx, model.User{OrgID: f.orgID, Username: "tutor", PasswordHash: "y"}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate username err = %v, want ErrConflict", err)
	}

	u, err := s.GetUserByUsername(ctx, "tutor")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.ID != f.tutorID || !u.Active || u.Role != model.UserRoleTutor {
		t.Errorf("user = %+v", u)
	}

	if err := s.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	u, _ = s.GetUserByID(ctx, u.ID)
	if u.Active {
		t.Error("user should be inactive")
	}

	token, err := s.CreateAuthSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	as, err := s.GetAuthSession(ctx, token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if as.UserID != u.ID {
		t.Errorf("auth session user = %s", as.UserID)
	}
	if err := s.DeleteAuthSession(ctx, token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if _, err := s.GetAuthSession(ctx, token); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("deleted session err = %v", err)
	}

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 1 {
		t.Errorf("UserCount = %d, want 1", count)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetadata(ctx, ImportedFileKey("abc123"))
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Fatalf("expected empty value, got %q", v)
	}
	if err := s.SetMetadata(ctx, ImportedFileKey("abc123"), "test-1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, ImportedFileKey("abc123"), "test-2"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	v, _ = s.GetMetadata(ctx, ImportedFileKey("abc123"))
	if v != "test-2" {
		t.Errorf("metadata = %q, want test-2", v)
	}
}
