package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/sigreer/diskclean/internal/clean"
	"github.com/sigreer/diskclean/internal/hints"
)

type HistoryTest struct {
	suite.Suite
	db    *DB
	ctx   context.Context
	start time.Time
}

func TestHistorySuite(t *testing.T) {
	suite.Run(t, new(HistoryTest))
}

func (s *HistoryTest) SetupTest() {
	var err error
	s.db, err = New(filepath.Join(s.T().TempDir(), "state", "history.db"))
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.db.now = func() time.Time { return s.start.Add(time.Minute) }
}

func (s *HistoryTest) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *HistoryTest) startRun(id string) {
	s.Require().NoError(s.db.StartRun(s.ctx, clean.RunInfo{
		ID:        id,
		Node:      "node-1",
		Managers:  "custom_cleaning_manager:1.0",
		Steps:     4,
		StartedAt: s.start,
	}))
}

func (s *HistoryTest) TestRunLifecycle() {
	s.startRun("run-a")

	run, err := s.db.GetRun(s.ctx, "run-a")
	s.Require().NoError(err)
	s.Require().NotNil(run)
	s.Equal(clean.StatusRunning, run.Status)
	s.Equal("custom_cleaning_manager:1.0", run.Managers)
	s.Equal(4, run.Steps)
	s.True(run.StartedAt.Equal(s.start))
	s.Nil(run.FinishedAt)

	s.Require().NoError(s.db.FinishRun(s.ctx, "run-a", clean.StatusFailed, "clean step x failed: boom"))

	run, err = s.db.GetRun(s.ctx, "run-a")
	s.Require().NoError(err)
	s.Equal(clean.StatusFailed, run.Status)
	s.Equal("clean step x failed: boom", run.Error)
	s.Require().NotNil(run.FinishedAt)
	s.True(run.FinishedAt.Equal(s.start.Add(time.Minute)))
}

func (s *HistoryTest) TestStepResults() {
	s.startRun("run-a")

	results := []clean.StepResult{
		{Step: "erase_devices", Priority: 0, Status: clean.StatusSucceeded, StartedAt: s.start, Duration: 3 * time.Second},
		{Step: "get_root_disks", Priority: 90, Status: clean.StatusFailed, Error: "no match", StartedAt: s.start, Duration: time.Millisecond},
	}
	for _, r := range results {
		s.Require().NoError(s.db.RecordStep(s.ctx, "run-a", r))
	}

	got, err := s.db.GetStepResults(s.ctx, "run-a")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("erase_devices", got[0].Step)
	s.Equal(3*time.Second, got[0].Duration)
	s.Equal(90, got[1].Priority)
	s.Equal(clean.StatusFailed, got[1].Status)
	s.Equal("no match", got[1].Error)
}

func (s *HistoryTest) TestRootDisks() {
	s.startRun("run-a")

	size := uint64(256060514304)
	serial := "S3Z9"
	disks := []hints.Device{
		{Name: "/dev/sda", Serial: &serial, Size: &size},
		{Name: "/dev/sdb"},
	}
	s.Require().NoError(s.db.RecordRootDisks(s.ctx, "run-a", disks))

	got, err := s.db.GetRootDisks(s.ctx, "run-a")
	s.Require().NoError(err)
	s.Equal(disks, got)
}

func (s *HistoryTest) TestRootDisksAfterInterrupt() {
	s.startRun("run-a")
	disks := []hints.Device{{Name: "/dev/sda"}}

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.Error(s.db.RecordRootDisks(ctx, "run-a", disks))

	s.Require().NoError(s.db.RecordRootDisks(context.WithoutCancel(ctx), "run-a", disks))
	got, err := s.db.GetRootDisks(s.ctx, "run-a")
	s.Require().NoError(err)
	s.Equal(disks, got)
}

func (s *HistoryTest) TestUnknownRun() {
	s.ErrorIs(s.db.RecordStep(s.ctx, "missing", clean.StepResult{Step: "x"}), ErrRunNotFound)
	s.ErrorIs(s.db.RecordRootDisks(s.ctx, "missing", nil), ErrRunNotFound)
	s.ErrorIs(s.db.FinishRun(s.ctx, "missing", clean.StatusSucceeded, ""), ErrRunNotFound)

	run, err := s.db.GetRun(s.ctx, "missing")
	s.NoError(err)
	s.Nil(run)
}

func (s *HistoryTest) TestGetRunsNewestFirst() {
	s.startRun("run-a")
	s.startRun("run-b")
	s.startRun("run-c")

	runs, err := s.db.GetRuns(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Equal("run-c", runs[0].UUID)
	s.Equal("run-b", runs[1].UUID)
}

func (s *HistoryTest) TestRunnerRecordsIntoHistory() {
	step := clean.NewStep(clean.StepInfo{Step: "noop"}, func(context.Context, *clean.Node, []clean.Port) error {
		return nil
	})

	runner := clean.NewRunner([]clean.Step{step}, s.db)
	report, err := runner.Run(s.ctx, &clean.Node{Name: "node-2"}, nil)
	s.Require().NoError(err)

	run, err := s.db.GetRun(s.ctx, report.ID)
	s.Require().NoError(err)
	s.Require().NotNil(run)
	s.Equal("node-2", run.Node)
	s.Equal(clean.StatusSucceeded, run.Status)

	results, err := s.db.GetStepResults(s.ctx, report.ID)
	s.Require().NoError(err)
	s.Len(results, 1)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	d, err := New(path)
	require.NoError(t, err)
	require.NoError(t, d.StartRun(context.Background(), clean.RunInfo{ID: "r", Node: "n", StartedAt: time.Now()}))
	require.NoError(t, d.Close())

	d, err = New(path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, path, d.Path())
	run, err := d.GetRun(context.Background(), "r")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Empty(t, run.Managers)
}
