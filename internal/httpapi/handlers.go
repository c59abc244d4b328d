package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/jobs"
)

// startResponse answers every start endpoint. Status is "sent" for
// background jobs and "completed" for inline runs, which carry the result.
type startResponse struct {
	Status      string       `json:"status"`
	Token       string       `json:"token"`
	ExecutionID string       `json:"execution_id,omitempty"`
	Launcher    string       `json:"launcher,omitempty"`
	Result      *jobs.Result `json:"result,omitempty"`
}

type pollResponse struct {
	Status jobs.Status  `json:"status"`
	Result *jobs.Result `json:"result,omitempty"`
}

type translationRequest struct {
	PostID        string `json:"post_id"`
	SourceLang    string `json:"source_lang"`
	TargetLang    string `json:"target_lang"`
	SkipWorkflows bool   `json:"skip_workflows"`
}

type workflowTestRequest struct {
	PostID   string                  `json:"post_id"`
	Bundle   *internal.ContentBundle `json:"bundle"`
	Language string                  `json:"language"`
}

type workflowExecuteRequest struct {
	ExecutionID string `json:"execution_id"`
	PostID      string `json:"post_id"`
	Language    string `json:"language"`
}

func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return errs.Wrap(errs.KindValidation, err, "invalid request body")
	}
	return nil
}

// start dispatches the job, or runs it inline when the request asks for
// ?sync=1.
func (s *Server) start(c *fiber.Ctx, action jobs.Action, v any) (*startResponse, error) {
	args, err := jobs.ArgsFrom(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid job arguments")
	}

	if c.QueryBool("sync") {
		ticket, res, err := s.app.RunInline(c.UserContext(), action, args)
		if err != nil {
			return nil, err
		}
		return &startResponse{Status: string(jobs.StatusCompleted), Token: ticket.Token, Launcher: ticket.Launcher, Result: res}, nil
	}

	ticket, err := s.app.Start(c.UserContext(), action, args)
	if err != nil {
		return nil, err
	}
	return &startResponse{Status: "sent", Token: ticket.Token, Launcher: ticket.Launcher}, nil
}

func reply(c *fiber.Ctx, resp *startResponse) error {
	if resp.Status == string(jobs.StatusCompleted) {
		return c.JSON(resp)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (s *Server) poll(c *fiber.Ctx, key string) error {
	res, err := s.app.Poller.Peek(c.UserContext(), key)
	if err != nil {
		return err
	}
	if res.Status != jobs.StatusCompleted {
		return c.JSON(pollResponse{Status: res.Status})
	}
	return c.JSON(pollResponse{Status: res.Status, Result: res})
}

func (s *Server) startTranslation(c *fiber.Ctx) error {
	var req translationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	resp, err := s.start(c, jobs.ActionTranslate, jobs.TranslateArgs{
		PostID:        req.PostID,
		SourceLang:    req.SourceLang,
		TargetLang:    req.TargetLang,
		SkipWorkflows: req.SkipWorkflows,
	})
	if err != nil {
		return err
	}
	return reply(c, resp)
}

func (s *Server) pollTranslation(c *fiber.Ctx) error {
	return s.poll(c, jobs.TranslateResultKey(c.Params("token")))
}

func (s *Server) startWorkflowTest(c *fiber.Ctx) error {
	var req workflowTestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	resp, err := s.start(c, jobs.ActionWorkflowTest, jobs.WorkflowTestArgs{
		WorkflowID: c.Params("id"),
		PostID:     req.PostID,
		Bundle:     req.Bundle,
		Language:   req.Language,
	})
	if err != nil {
		return err
	}
	return reply(c, resp)
}

func (s *Server) pollWorkflowTest(c *fiber.Ctx) error {
	return s.poll(c, jobs.WorkflowTestResultKey(c.Params("token")))
}

func (s *Server) startWorkflowExecution(c *fiber.Ctx) error {
	var req workflowExecuteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ExecutionID == "" {
		req.ExecutionID = uuid.NewString()
	}
	resp, err := s.start(c, jobs.ActionWorkflowExecute, jobs.WorkflowExecuteArgs{
		ExecutionID: req.ExecutionID,
		WorkflowID:  c.Params("id"),
		PostID:      req.PostID,
		Language:    req.Language,
	})
	if err != nil {
		return err
	}
	resp.ExecutionID = req.ExecutionID
	return reply(c, resp)
}

func (s *Server) pollWorkflowExecution(c *fiber.Ctx) error {
	return s.poll(c, jobs.WorkflowExecutionResultKey(c.Params("id")))
}

// runJob is the loopback endpoint. It answers immediately; the worker
// writes the result under the job's result key.
func (s *Server) runJob(c *fiber.Ctx) error {
	// Params aliases the pooled request buffer; the worker outlives the handler
	token := utils.CopyString(c.Params("token"))
	if token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing token")
	}
	go func() {
		if err := s.app.Worker.Run(s.jobCtx, token); err != nil {
			s.log.WithField("token", token).Warnf("loopback job failed: %v", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted", "token": token})
}
