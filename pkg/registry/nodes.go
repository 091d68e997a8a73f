package registry

import (
	"net/http"

	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/action"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/condition"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/data"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/flow"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/loop"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/trigger"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// Dependencies are the process-wide collaborators handed to executors.
// Any of them may be nil; nodes that need a missing one fail at run time.
type Dependencies struct {
	Messenger    protocol.Messenger
	ModuleCaller protocol.ModuleCaller
	QueryRunner  protocol.QueryRunner
	HTTPClient   *http.Client
}

// RegisterDefaultNodes registers the built-in executor for every node type.
func (r *Registry) RegisterDefaultNodes(deps Dependencies) {
	r.Register(trigger.New())
	r.Register(condition.New())
	r.Register(action.New(deps.Messenger, deps.ModuleCaller, deps.HTTPClient))
	r.Register(data.New(deps.QueryRunner))
	r.Register(loop.New())
	r.Register(flow.New())
}
