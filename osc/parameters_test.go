package osc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskParametersKeepUnknownFields(t *testing.T) {
	t.Parallel()

	raw := `{"state":"MONITOR_DATA_TASK","extraInfo":"copying","rateLimitConfig":{"rowLimit":10,"dataSizeLimit":2},` +
		`"databaseName":"shop","originTableName":"orders","newTableName":"_orders_osc_new_",` +
		`"omsProjectId":"p-1","checkpoint":{"offset":42}}`

	params, err := ParseTaskParameters(raw)
	require.NoError(t, err)

	assert.Equal(t, StateMonitorDataTask, params.State)
	assert.Equal(t, "copying", params.ExtraInfo)
	assert.Equal(t, RateLimitConfig{RowLimit: 10, DataSizeLimit: 2}, params.RateLimit)
	assert.Len(t, params.Extra, 2)

	params.State = StateSwapTable
	params.ExtraInfo = ""

	encoded, err := params.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{"state":"SWAP_TABLE","rateLimitConfig":{"rowLimit":10,"dataSizeLimit":2},`+
		`"databaseName":"shop","originTableName":"orders","newTableName":"_orders_osc_new_",`+
		`"omsProjectId":"p-1","checkpoint":{"offset":42}}`, encoded)
}

func TestTaskParametersFoldCaseKeys(t *testing.T) {
	t.Parallel()

	raw := `{"State":"SWAP_TABLE","DATABASENAME":"shop","originTableName":"orders","newTableName":"n","omsProjectId":"p-1"}`

	params, err := ParseTaskParameters(raw)
	require.NoError(t, err)

	assert.Equal(t, StateSwapTable, params.State)
	assert.Equal(t, "shop", params.DatabaseName)
	assert.Equal(t, map[string]json.RawMessage{"omsProjectId": json.RawMessage(`"p-1"`)}, params.Extra)

	encoded, err := params.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{"state":"SWAP_TABLE","rateLimitConfig":{"rowLimit":0,"dataSizeLimit":0},`+
		`"databaseName":"shop","originTableName":"orders","newTableName":"n","omsProjectId":"p-1"}`, encoded)

	params.Extra["STATE"] = json.RawMessage(`"COMPLETE"`)

	encoded, err = params.Encode()
	require.NoError(t, err)
	assert.NotContains(t, encoded, "COMPLETE", "extra members never shadow known fields")
}

func TestTaskParametersDefaults(t *testing.T) {
	t.Parallel()

	params, err := ParseTaskParameters(`{"extraInfo":null,"rateLimitConfig":null}`)
	require.NoError(t, err)

	assert.Equal(t, StateYieldContext, params.State)
	assert.Empty(t, params.ExtraInfo)
	assert.Equal(t, RateLimitConfig{}, params.RateLimit)
	assert.Nil(t, params.Extra)
}

func TestTaskParametersRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  ", "[1,2]", `{"state":`} {
		_, err := ParseTaskParameters(raw)
		require.Error(t, err, raw)
	}
}

func TestTaskParametersValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validParams(StateCreateDataTask).Validate())

	missing := validParams(StateCreateDataTask)
	missing.DatabaseName = " "
	missing.NewTableName = ""
	err := missing.Validate()
	require.ErrorIs(t, err, errMissingField)
	assert.Contains(t, err.Error(), "databaseName, newTableName")

	unknown := validParams("DROP_EVERYTHING")
	require.ErrorIs(t, unknown.Validate(), errUnknownState)

	negative := validParams(StateCreateDataTask)
	negative.RateLimit.RowLimit = -5
	require.ErrorIs(t, negative.Validate(), errNegativeLimit)
}

func TestTaskParametersClone(t *testing.T) {
	t.Parallel()

	params, err := ParseTaskParameters(`{"state":"SWAP_TABLE","lockUsers":["app"]}`)
	require.NoError(t, err)

	clone := params.Clone()
	clone.State = StateCleanResource
	clone.Extra["lockUsers"] = []byte(`[]`)

	assert.Equal(t, StateSwapTable, params.State)
	assert.JSONEq(t, `["app"]`, string(params.Extra["lockUsers"]))
}

func TestJobParameters(t *testing.T) {
	t.Parallel()

	job, err := ParseJobParameters(`{"flowInstanceId":100,"flowTaskID":101,"sqlContent":"ALTER TABLE orders ADD c INT",` +
		`"originTableCleanStrategy":"ORIGIN_TABLE_DROP","swapTableType":"AUTO","swapTableNameRetryTimes":3,` +
		`"lockTableTimeOutSeconds":15}`)
	require.NoError(t, err)
	require.NoError(t, job.Validate())

	assert.Equal(t, int64(100), job.FlowInstanceID)
	assert.Equal(t, int64(101), job.FlowTaskID)
	assert.Equal(t, CleanDrop, job.OriginTableCleanStrategy)
	assert.Equal(t, RateLimitConfig{}, job.RateLimit)

	job.RateLimit = RateLimitConfig{RowLimit: 5}

	encoded, err := job.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, `"lockTableTimeOutSeconds":15`)
	assert.Contains(t, encoded, `"rateLimitConfig":{"rowLimit":5,"dataSizeLimit":0}`)

	tests := []struct {
		name string
		job  JobParameters
		err  error
	}{
		{name: "strategy", job: JobParameters{OriginTableCleanStrategy: "KEEP"}, err: errUnknownEnum},
		{name: "swap type", job: JobParameters{SwapTableType: "LATER"}, err: errUnknownEnum},
		{name: "retries", job: JobParameters{SwapTableNameRetryTimes: -1}, err: errNegativeRetry},
		{name: "rate limit", job: JobParameters{RateLimit: RateLimitConfig{DataSizeLimit: -1}}, err: errNegativeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.ErrorIs(t, tt.job.Validate(), tt.err)
		})
	}
}
