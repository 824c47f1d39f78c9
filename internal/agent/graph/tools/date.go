package tools

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// ===================================
// Current Date Tool
// ===================================

type CurrentDateInput struct {
	Timezone string `json:"timezone,omitempty"`
}

type CurrentDateOutput struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Weekday  string `json:"weekday"`
	Timezone string `json:"timezone"`
	RFC3339  string `json:"rfc3339"`
}

// NewCurrentDateTool reports the current date and time. now may be nil.
func NewCurrentDateTool(now func() time.Time) tool.InvokableTool {
	if now == nil {
		now = time.Now
	}
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCurrentDate,
			Desc: "Get the current date, time and weekday. Use this whenever the answer depends on today's date or the current time.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"timezone": {
					Type: "string",
					Desc: "Optional IANA time zone such as Asia/Bangkok or Europe/Berlin. Defaults to UTC.",
				},
			}),
		},
		func(ctx context.Context, in *CurrentDateInput) (*CurrentDateOutput, error) {
			loc := time.UTC
			if in != nil && in.Timezone != "" {
				l, err := time.LoadLocation(in.Timezone)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", in.Timezone)
				}
				loc = l
			}
			t := now().In(loc)
			return &CurrentDateOutput{
				Date:     t.Format("2006-01-02"),
				Time:     t.Format("15:04:05"),
				Weekday:  t.Weekday().String(),
				Timezone: loc.String(),
				RFC3339:  t.Format(time.RFC3339),
			}, nil
		},
	)
}
