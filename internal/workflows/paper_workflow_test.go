package workflows

import (
	"context"
	"testing"

	"citegraph/internal/activities"
	"citegraph/internal/ingest"
	"citegraph/internal/insight"
	"citegraph/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerPaperActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "LookupPapersActivity", func(context.Context, activities.LookupPapersInput) (activities.LookupPapersOutput, error) {
		return activities.LookupPapersOutput{}, nil
	})
	registerActivityName(env, "LatestPapersActivity", func(context.Context, activities.LatestPapersInput) (activities.LatestPapersOutput, error) {
		return activities.LatestPapersOutput{}, nil
	})
	registerActivityName(env, "IngestPaperActivity", func(context.Context, activities.IngestPaperInput) (activities.IngestPaperOutput, error) {
		return activities.IngestPaperOutput{}, nil
	})
}

func lookupKnown(known ...string) func(context.Context, activities.LookupPapersInput) (activities.LookupPapersOutput, error) {
	return func(_ context.Context, in activities.LookupPapersInput) (activities.LookupPapersOutput, error) {
		var out activities.LookupPapersOutput
		for _, id := range in.IDs {
			found := false
			for _, k := range known {
				if k == id {
					out.Papers = append(out.Papers, models.PaperMetadata{ArxivID: id, Title: "Paper " + id})
					found = true
				}
			}
			if !found {
				out.Missing = append(out.Missing, id)
			}
		}
		return out, nil
	}
}

func ingestOK(_ context.Context, in activities.IngestPaperInput) (activities.IngestPaperOutput, error) {
	return activities.IngestPaperOutput{Result: ingest.Result{Metadata: in.Metadata, States: ingest.States, TextPoints: 2}}, nil
}

func TestPaperIngestWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	env.OnActivity("LookupPapersActivity", mock.Anything, activities.LookupPapersInput{IDs: []string{"1706.03762"}}).Return(lookupKnown("1706.03762"))
	env.OnActivity("IngestPaperActivity", mock.Anything, mock.Anything).Return(ingestOK)

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperID: "1706.03762"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperStatus
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusDone, out.Status)
	require.Equal(t, map[string]string{"lookup": StatusDone, "ingest": StatusDone}, out.Steps)
	require.NotNil(t, out.Result)
	require.Equal(t, 2, out.Result.TextPoints)

	val, err := env.QueryWorkflow(QueryStatus)
	require.NoError(t, err)
	var queried PaperStatus
	require.NoError(t, val.Get(&queried))
	require.Equal(t, StatusDone, queried.Status)
}

func TestPaperIngestWorkflowNotFound(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	env.OnActivity("LookupPapersActivity", mock.Anything, mock.Anything).Return(activities.LookupPapersOutput{Missing: []string{"2401.99999"}}, nil)

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperID: "2401.99999"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperStatus
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusNotFound, out.Status)
	env.AssertExpectations(t)
}

func TestPaperIngestWorkflowStepFailureIsReported(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	meta := models.PaperMetadata{ArxivID: "2401.00001", Title: "T"}
	env.OnActivity("IngestPaperActivity", mock.Anything, mock.Anything).
		Return(activities.IngestPaperOutput{}, temporal.NewApplicationError("pdf fetch failed", activities.StepErrorPrefix+string(ingest.StateFetching))).
		Once()

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{Metadata: &meta})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperStatus
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusFailed, out.Status)
	require.Equal(t, "2401.00001", out.PaperID)
	require.Equal(t, string(ingest.StateFetching), out.FailedState)
	require.NotContains(t, out.Steps, "lookup")
	env.AssertExpectations(t)
}

func TestPaperIngestWorkflowRequiresID(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestCorpusIngestWorkflowBatchesChildren(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CorpusIngestWorkflow)
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	env.OnActivity("LookupPapersActivity", mock.Anything, mock.Anything).Return(lookupKnown("1706.03762", "1810.04805"))
	env.OnActivity("IngestPaperActivity", mock.Anything, mock.Anything).Return(ingestOK)

	env.ExecuteWorkflow(CorpusIngestWorkflow, CorpusIngestInput{
		IDs:         []string{"1706.03762", "2401.99999", "1810.04805", " "},
		MaxChildren: 2,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out CorpusIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Total)
	require.Equal(t, 2, out.Done)
	require.Equal(t, 1, out.NotFound)
	require.Zero(t, out.Failed)
	require.Equal(t, StatusNotFound, out.PerPaper["2401.99999"])
	require.Len(t, out.ChildWorkflow, 3)
}

func TestCorpusIngestWorkflowLatestSkipsLookup(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CorpusIngestWorkflow)
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	env.OnActivity("LatestPapersActivity", mock.Anything, activities.LatestPapersInput{Categories: []string{"cs.CL"}, Max: 2}).
		Return(activities.LatestPapersOutput{Papers: []models.PaperMetadata{{ArxivID: "2401.00001"}, {ArxivID: "2401.00002"}}}, nil)
	env.OnActivity("IngestPaperActivity", mock.Anything, mock.Anything).Return(ingestOK).Twice()

	env.ExecuteWorkflow(CorpusIngestWorkflow, CorpusIngestInput{Latest: 2, Categories: []string{"cs.CL"}})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out CorpusIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 2, out.Done)
	env.AssertExpectations(t)
}

func TestBackfillWorkflowStopsWhenNothingResolves(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BackfillWorkflow)
	registerActivityName(env, "BackfillSweepActivity", func(context.Context, activities.BackfillSweepInput) (activities.BackfillSweepOutput, error) {
		return activities.BackfillSweepOutput{}, nil
	})

	resolved := []int{2, 1, 0}
	calls := 0
	env.OnActivity("BackfillSweepActivity", mock.Anything, activities.BackfillSweepInput{Batch: 5}).Return(
		func(context.Context, activities.BackfillSweepInput) (activities.BackfillSweepOutput, error) {
			r := resolved[calls]
			calls++
			return activities.BackfillSweepOutput{Sweep: ingest.SweepResult{Requested: 3, Resolved: r, Missing: []string{"x"}}}, nil
		})

	env.ExecuteWorkflow(BackfillWorkflow, BackfillInput{Batch: 5})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out BackfillSummary
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Batches)
	require.Equal(t, 9, out.Requested)
	require.Equal(t, 3, out.Resolved)
	require.Equal(t, []string{"x"}, out.Missing)
}

func TestBackfillWorkflowHonoursMaxBatches(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BackfillWorkflow)
	registerActivityName(env, "BackfillSweepActivity", func(context.Context, activities.BackfillSweepInput) (activities.BackfillSweepOutput, error) {
		return activities.BackfillSweepOutput{}, nil
	})
	env.OnActivity("BackfillSweepActivity", mock.Anything, mock.Anything).
		Return(activities.BackfillSweepOutput{Sweep: ingest.SweepResult{Requested: 1, Resolved: 1}}, nil)

	env.ExecuteWorkflow(BackfillWorkflow, BackfillInput{MaxBatches: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out BackfillSummary
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 2, out.Batches)
	require.Equal(t, 2, out.Resolved)
}

func TestInsightWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(InsightWorkflow)
	registerActivityName(env, "GenerateInsightActivity", func(context.Context, activities.GenerateInsightInput) (activities.GenerateInsightOutput, error) {
		return activities.GenerateInsightOutput{}, nil
	})
	env.OnActivity("GenerateInsightActivity", mock.Anything, activities.GenerateInsightInput{PaperID: "1706.03762"}).
		Return(activities.GenerateInsightOutput{Insight: insight.Insight{PaperID: "1706.03762", Status: insight.StatusOK, Text: "lineage"}}, nil)

	env.ExecuteWorkflow(InsightWorkflow, InsightInput{PaperID: "1706.03762"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out insight.Insight
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "lineage", out.Text)
}
