package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `gigboard is a marketplace for freelance projects recorded on an escrow ledger.

Core concepts:
- Project: a ledger record with a name, description, amount and creator. It is OPEN until a client accepts it, ACCEPTED while escrow is held, COMPLETED once the client releases payment.
- Snapshot: an in-memory view built by scanning every ledger record. All listings read from it. If a rebuild fails the previous snapshot stays visible and is flagged stale.
- Action: a write (create, accept, complete, update_profile). It moves through SUBMITTING, AWAITING_SETTLEMENT, SETTLED and REBUILD_TRIGGERED, or ends FAILED with a failure kind.

Default workflow:
1) Orient: call session_status. If ready is false, call refresh_marketplace.
2) Browse: list_marketplace with search_term, filter_by (all, recent, today) and sort_by (newest, oldest, price-high, price-low).
3) Write: create_project, accept_project, complete_project or update_profile. Writes need a connected account; use switch_account.
4) Follow up: get_action for an action's lifecycle, list_activity for history.

Amounts are decimal strings in major units (1 unit = 10^18 minor units).

Docs:
- gigboard://docs/index
- gigboard://docs/lifecycle
- gigboard://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "gigboard://docs/index",
		Name:        "docs_index",
		Title:       "gigboard docs index",
		Description: "Entry point: available tools and what to read next.",
		Content: `# gigboard: Agent Docs Index

## Tools

- ` + "`session_status`" + `, ` + "`switch_account`" + `, ` + "`refresh_marketplace`" + `: session and snapshot freshness.
- ` + "`list_marketplace`" + `, ` + "`get_project`" + `, ` + "`get_overview`" + `: browse open work.
- ` + "`list_created_projects`" + `, ` + "`list_purchased_projects`" + `, ` + "`get_account_stats`" + `, ` + "`get_profile`" + `: per-account views.
- ` + "`create_project`" + `, ` + "`accept_project`" + `, ` + "`complete_project`" + `, ` + "`update_profile`" + `: ledger writes.
- ` + "`get_action`" + `, ` + "`list_actions`" + `, ` + "`list_activity`" + `: write tracking and history.

## Docs

- ` + "`gigboard://docs/lifecycle`" + `: project and action lifecycles.
- ` + "`gigboard://docs/errors`" + `: error codes and recovery.

## Limitations

- Listings are served from the last snapshot; check ` + "`stale`" + ` and ` + "`refreshed_at`" + `.
- Statistics cover the projects an account created. Earnings sum its completed projects.
- Reputation is a placeholder: 10 points per completed project.
- Read-only sessions serve no per-account listings or statistics, even for a named account.
`,
	},
	{
		URI:         "gigboard://docs/lifecycle",
		Name:        "docs_lifecycle",
		Title:       "Project and action lifecycles",
		Description: "How projects move between OPEN, ACCEPTED and COMPLETED, and how writes settle.",
		Content: `# Lifecycles

## Project

OPEN -> ACCEPTED -> COMPLETED

- Only OPEN projects appear in the marketplace.
- Accepting escrows exactly the project amount. Omit ` + "`escrow`" + ` to use the listed amount.
- A creator cannot accept their own project.
- Only the client who accepted can complete; completion pays the creator.

## Action

IDLE -> SUBMITTING -> AWAITING_SETTLEMENT -> SETTLED -> REBUILD_TRIGGERED

Any step before REBUILD_TRIGGERED may end in FAILED. A write that settled stays successful even when the follow-up rebuild fails; ` + "`rebuild_error`" + ` is set and the snapshot is marked stale.

Only one action per account, kind and target runs at a time. A duplicate returns ALREADY_IN_PROGRESS.
`,
	},
	{
		URI:         "gigboard://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Failure kinds returned by tools and how to recover.",
		Content: `# Error codes

Tool errors are JSON objects with ` + "`code`" + `, ` + "`message`" + `, optional ` + "`details`" + ` and ` + "`recovery_hint`" + `.

- UNAVAILABLE: the ledger could not be reached. Retry later.
- NOT_FOUND: the project does not exist. Refresh first.
- REVERTED: the ledger rejected the write. ` + "`details.revert_reason`" + ` carries its reason.
- TIMEOUT: settlement was not observed in time. The write may still land.
- AMOUNT_MISMATCH: escrow differs from the project amount. Nothing was submitted.
- ALREADY_IN_PROGRESS: the same write is already pending.
- INTEGRITY: the ledger returned an inconsistent record. The previous snapshot is kept.
- INVALID_INPUT, INVALID_PARAMS: fix the arguments.
- NO_SESSION, NO_ACCOUNT, NOT_READY: session state prevents the call.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
