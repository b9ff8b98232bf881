package activity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neuroboost/study-core/internal/activity"
	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/grading"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/reward"
	"github.com/rs/zerolog"
)

type fakeAPI struct {
	toggle func(taskID int, completed bool) (*model.ToggleTaskResponse, error)
	focus  func(req model.FocusSessionRequest) (*model.FocusSessionResponse, error)
	calls  int
}

func (f *fakeAPI) ToggleTaskCompletion(_ context.Context, taskID int, completed bool) (*model.ToggleTaskResponse, error) {
	f.calls++
	return f.toggle(taskID, completed)
}

func (f *fakeAPI) LogFocusSession(_ context.Context, req model.FocusSessionRequest) (*model.FocusSessionResponse, error) {
	f.calls++
	return f.focus(req)
}

type fakeSource struct {
	snap   model.RewardSnapshot
	streak model.StreakSnapshot
}

func (f *fakeSource) RewardSnapshot(context.Context) (*model.RewardSnapshot, error) {
	s := f.snap
	return &s, nil
}

func (f *fakeSource) StreakSnapshot(context.Context) (*model.StreakSnapshot, error) {
	s := f.streak
	return &s, nil
}

type recorder struct {
	types    []events.Type
	levelUps []events.LevelUp
}

func (r *recorder) Publish(e events.Event) {
	r.types = append(r.types, e.Type)
	if lu, ok := e.Data.(events.LevelUp); ok {
		r.levelUps = append(r.levelUps, lu)
	}
}

func setup(src *fakeSource, api *fakeAPI) (*activity.Service, *reward.Synchronizer, *recorder) {
	rec := &recorder{}
	sync := reward.NewSynchronizer(src, rec, zerolog.Nop())
	sync.Load(context.Background())
	rec.types, rec.levelUps = nil, nil
	return activity.NewService(api, sync, zerolog.Nop()), sync, rec
}

func TestToggleTask_OptimisticThenReconciled(t *testing.T) {
	src := &fakeSource{snap: model.RewardSnapshot{XP: 95, Level: 1, XPToNext: 5}}

	var duringRequest model.RewardState
	var svc *activity.Service
	var sync *reward.Synchronizer
	api := &fakeAPI{toggle: func(taskID int, completed bool) (*model.ToggleTaskResponse, error) {
		duringRequest = sync.State()
		return &model.ToggleTaskResponse{
			TaskID: taskID, Completed: completed, XPGained: 30,
			NewXP: 125, NewLevel: 2, XPToNextLevel: 75,
			StreakUpdated: true, CurrentStreak: 5, StreakActive: true,
			StreakIncreased: true, StreakXPGained: 20,
		}, nil
	}}
	svc, sync, rec := setup(src, api)

	task := model.Task{ID: 7, Title: "Read chapter 3", Category: model.TaskCategoryStudy}
	if _, err := svc.ToggleTask(context.Background(), task, true); err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}

	if duringRequest.XP != 105 || duringRequest.Level != 2 {
		t.Errorf("optimistic state = %+v, want xp=105 level=2", duringRequest)
	}
	got := sync.State()
	if got.XP != 125 || got.Level != 2 || got.XPToNext != 75 || got.StreakDays != 5 || !got.StreakActive {
		t.Errorf("reconciled state = %+v", got)
	}

	// Streak settles before XP.
	streakAt, lastRewardAt := -1, -1
	for i, typ := range rec.types {
		switch typ {
		case events.TypeStreakIncreased:
			streakAt = i
		case events.TypeRewardChanged:
			lastRewardAt = i
		}
	}
	if streakAt < 0 || lastRewardAt < streakAt {
		t.Errorf("event order = %v", rec.types)
	}
}

func TestToggleTask_ServerLevelUpIsConfirmed(t *testing.T) {
	tests := []struct {
		name          string
		startXP       int
		resp          model.ToggleTaskResponse
		wantConfirmed int
	}{
		{
			name:    "projected locally, confirmed by server flag",
			startXP: 95,
			resp: model.ToggleTaskResponse{
				Completed: true, XPGained: 10, LeveledUp: true,
				NewXP: 105, NewLevel: 2, XPToNextLevel: 95,
			},
			wantConfirmed: 1,
		},
		{
			name:    "server level above projection fires once",
			startXP: 50,
			resp: model.ToggleTaskResponse{
				Completed: true, XPGained: 10, LeveledUp: true,
				NewXP: 210, NewLevel: 3, XPToNextLevel: 90,
			},
			wantConfirmed: 1,
		},
		{
			name:    "no level-up",
			startXP: 10,
			resp: model.ToggleTaskResponse{
				Completed: true, XPGained: 10,
				NewXP: 20, NewLevel: 1, XPToNextLevel: 80,
			},
			wantConfirmed: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{snap: model.RewardSnapshot{XP: tt.startXP, Level: 1, XPToNext: 100 - tt.startXP}}
			api := &fakeAPI{toggle: func(taskID int, _ bool) (*model.ToggleTaskResponse, error) {
				resp := tt.resp
				resp.TaskID = taskID
				return &resp, nil
			}}
			svc, _, rec := setup(src, api)

			if _, err := svc.ToggleTask(context.Background(), model.Task{ID: 1, Category: model.TaskCategoryStudy}, true); err != nil {
				t.Fatalf("ToggleTask: %v", err)
			}
			confirmed := 0
			for _, lu := range rec.levelUps {
				if !lu.Provisional {
					confirmed++
					if lu.Level != tt.resp.NewLevel {
						t.Errorf("confirmed level = %d, want %d", lu.Level, tt.resp.NewLevel)
					}
				}
			}
			if confirmed != tt.wantConfirmed {
				t.Errorf("confirmed level-ups = %d, want %d (events %v)", confirmed, tt.wantConfirmed, rec.levelUps)
			}
		})
	}
}

func TestToggleTask_UncompleteHasNoLocalGain(t *testing.T) {
	src := &fakeSource{snap: model.RewardSnapshot{XP: 40, Level: 1, XPToNext: 60}}
	var sync *reward.Synchronizer
	var during int
	api := &fakeAPI{toggle: func(taskID int, completed bool) (*model.ToggleTaskResponse, error) {
		during = sync.State().XP
		return &model.ToggleTaskResponse{TaskID: taskID, NewXP: 40, NewLevel: 1, XPToNextLevel: 60}, nil
	}}
	svc, sync, _ := setup(src, api)

	if _, err := svc.ToggleTask(context.Background(), model.Task{ID: 1, Category: model.TaskCategoryGeneral}, false); err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}
	if during != 40 {
		t.Errorf("xp during request = %d, want 40", during)
	}
}

func TestToggleTask_FailureRefreshes(t *testing.T) {
	src := &fakeSource{snap: model.RewardSnapshot{XP: 40, Level: 1, XPToNext: 60}}
	boom := &grading.NetworkError{Op: "toggle task", Status: 500, Message: "Could not update task"}
	api := &fakeAPI{toggle: func(int, bool) (*model.ToggleTaskResponse, error) {
		return nil, boom
	}}
	svc, sync, _ := setup(src, api)

	_, err := svc.ToggleTask(context.Background(), model.Task{ID: 3, Category: model.TaskCategoryGeneral}, true)
	var netErr *grading.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if got := sync.State().XP; got != 40 {
		t.Errorf("xp after failed toggle = %d, want server value 40", got)
	}
}

func TestLogFocusSession(t *testing.T) {
	tests := []struct {
		name      string
		minutes   int
		wantLocal int
		wantCall  bool
		wantErr   bool
	}{
		{name: "long session earns xp", minutes: 30, wantLocal: 15, wantCall: true},
		{name: "short session earns nothing", minutes: 10, wantLocal: 0, wantCall: true},
		{name: "threshold is inclusive", minutes: 25, wantLocal: 15, wantCall: true},
		{name: "zero minutes rejected", minutes: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{snap: model.RewardSnapshot{XP: 10, Level: 1, XPToNext: 90}}
			var sync *reward.Synchronizer
			var during int
			api := &fakeAPI{focus: func(req model.FocusSessionRequest) (*model.FocusSessionResponse, error) {
				during = sync.State().XP
				return &model.FocusSessionResponse{SessionID: "f-1", DurationMinutes: req.DurationMinutes}, nil
			}}
			var svc *activity.Service
			svc, sync, _ = setup(src, api)

			_, err := svc.LogFocusSession(context.Background(), tt.minutes, "")
			if tt.wantErr {
				var verr *grading.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				if api.calls != 0 {
					t.Errorf("api called %d times for invalid input", api.calls)
				}
				return
			}
			if err != nil {
				t.Fatalf("LogFocusSession: %v", err)
			}
			if during != 10+tt.wantLocal {
				t.Errorf("xp during request = %d, want %d", during, 10+tt.wantLocal)
			}
			if got := sync.State().XP; got != 10 {
				t.Errorf("xp after refresh = %d, want server value 10", got)
			}
		})
	}
}

func TestLogFocusSession_ServerLevelUpIsConfirmed(t *testing.T) {
	src := &fakeSource{snap: model.RewardSnapshot{XP: 90, Level: 1, XPToNext: 10}}
	api := &fakeAPI{focus: func(req model.FocusSessionRequest) (*model.FocusSessionResponse, error) {
		src.snap = model.RewardSnapshot{XP: 105, Level: 2, XPToNext: 95}
		return &model.FocusSessionResponse{SessionID: "f-1", DurationMinutes: req.DurationMinutes, XPGained: 15, LevelUp: true}, nil
	}}
	svc, _, rec := setup(src, api)

	if _, err := svc.LogFocusSession(context.Background(), 30, "deep work"); err != nil {
		t.Fatalf("LogFocusSession: %v", err)
	}
	var provisional, confirmed int
	for _, lu := range rec.levelUps {
		if lu.Level != 2 {
			t.Errorf("level-up to %d, want 2", lu.Level)
		}
		if lu.Provisional {
			provisional++
		} else {
			confirmed++
		}
	}
	if provisional != 1 || confirmed != 1 {
		t.Errorf("provisional=%d confirmed=%d, want 1 and 1", provisional, confirmed)
	}
}
