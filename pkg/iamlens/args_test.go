package iamlens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigs = "/data/collect"

func TestBuildSimulateArgs(t *testing.T) {
	tests := []struct {
		name string
		req  SimulationRequest
		want []string
	}{
		{
			name: "required only",
			req:  SimulationRequest{Principal: "arn:aws:iam::111111111111:role/Reader", Action: "s3:GetObject"},
			want: []string{"simulate", "--principal", "arn:aws:iam::111111111111:role/Reader", "--action", "s3:GetObject",
				"--collectConfigs", testConfigs},
		},
		{
			name: "all optional fields in fixed order",
			req: SimulationRequest{
				Principal:       "p",
				Action:          "s3:PutObject",
				Resource:        "arn:aws:s3:::bucket/key",
				ResourceAccount: "222222222222",
				ContextKeys:     ContextKeys{{Key: "aws:SourceIp", Value: "10.0.0.1"}, {Key: "aws:SecureTransport", Value: "true"}},
				Verbose:         true,
			},
			want: []string{"simulate", "--principal", "p", "--action", "s3:PutObject",
				"--resource", "arn:aws:s3:::bucket/key",
				"--resource-account", "222222222222",
				"--context", "aws:SourceIp", "10.0.0.1",
				"--context", "aws:SecureTransport", "true",
				"--verbose",
				"--collectConfigs", testConfigs},
		},
		{
			name: "account without resource",
			req:  SimulationRequest{Principal: "p", Action: "a", ResourceAccount: "333333333333"},
			want: []string{"simulate", "--principal", "p", "--action", "a", "--resource-account", "333333333333",
				"--collectConfigs", testConfigs},
		},
		{
			name: "values with whitespace stay single tokens",
			req:  SimulationRequest{Principal: "p", Action: "a", ContextKeys: ContextKeys{{Key: "tag key", Value: "value with spaces"}}},
			want: []string{"simulate", "--principal", "p", "--action", "a", "--context", "tag key", "value with spaces",
				"--collectConfigs", testConfigs},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildSimulateArgs(tc.req, testConfigs))
		})
	}
}

func TestBuildSimulateArgs_FramedByCommandAndConfigs(t *testing.T) {
	reqs := []SimulationRequest{
		{Principal: "p", Action: "a"},
		{Principal: "p", Action: "a", Verbose: true},
		{Principal: "p", Action: "a", Resource: "r", ContextKeys: ContextKeys{{Key: "k", Value: "v"}}},
		{Principal: "p", Action: "a", ResourceAccount: "acc", ContextKeys: ContextKeys{{Key: "--collectConfigs", Value: "x"}}},
	}
	for _, req := range reqs {
		args := BuildSimulateArgs(req, testConfigs)
		require.GreaterOrEqual(t, len(args), 7)
		assert.Equal(t, "simulate", args[0])
		assert.Equal(t, []string{"--collectConfigs", testConfigs}, args[len(args)-2:])
	}
}

func TestBuildSimulateArgs_ContextOrderPreserved(t *testing.T) {
	keys := ContextKeys{{Key: "z", Value: "1"}, {Key: "a", Value: "2"}, {Key: "m", Value: "3"}}
	args := BuildSimulateArgs(SimulationRequest{Principal: "p", Action: "a", ContextKeys: keys}, testConfigs)

	var got []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--context" {
			got = append(got, args[i+1])
		}
	}
	assert.Equal(t, []string{"z", "a", "m"}, got)
}

func TestBuildWhoCanArgs(t *testing.T) {
	tests := []struct {
		name string
		req  AccessQueryRequest
		want []string
	}{
		{
			name: "actions and account",
			req:  AccessQueryRequest{Resource: "arn:aws:s3:::bucket", Actions: []string{"s3:GetObject", "s3:PutObject"}, ResourceAccount: "111111111111"},
			want: []string{"who-can", "--resource", "arn:aws:s3:::bucket", "--actions", "s3:GetObject", "s3:PutObject",
				"--resource-account", "111111111111", "--collectConfigs", testConfigs},
		},
		{
			name: "empty actions omit flag",
			req:  AccessQueryRequest{Resource: "r", Actions: []string{}},
			want: []string{"who-can", "--resource", "r", "--collectConfigs", testConfigs},
		},
		{
			name: "nil actions omit flag",
			req:  AccessQueryRequest{Resource: "r", ResourceAccount: "acc"},
			want: []string{"who-can", "--resource", "r", "--resource-account", "acc", "--collectConfigs", testConfigs},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildWhoCanArgs(tc.req, testConfigs)
			assert.Equal(t, tc.want, got)
			if len(tc.req.Actions) == 0 {
				assert.NotContains(t, got, "--actions")
			}
		})
	}
}
