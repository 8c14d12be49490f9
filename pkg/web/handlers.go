package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/reachy-voice/pkg/executor"
)

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Command       string `json:"command"`
	UseClaudeCode *bool  `json:"use_claude_code"`
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.voice.Start(c.UserContext()); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(result(nil, "Voice control started"))
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.voice.Stop(c.UserContext()); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(result(nil, "Voice control stopped"))
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.voice.Status())
}

func (s *Server) handleExecute(c *fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Command == "" {
		return errorJSON(c, fiber.StatusBadRequest, "command is required")
	}
	useClaudeCode := req.UseClaudeCode == nil || *req.UseClaudeCode

	return c.JSON(s.voice.ExecuteManualCommand(c.UserContext(), req.Command, useClaudeCode))
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	if err := s.voice.CancelExecution(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(result(nil, "Execution cancelled"))
}

func (s *Server) handleClaudeCodeStatus(c *fiber.Ctx) error {
	info := s.voice.Status().Services.ClaudeCode
	if info == nil {
		return c.JSON(executor.Info{})
	}
	return c.JSON(info)
}

// result is the {success, message} body of lifecycle commands.
func result(err error, okMessage string) fiber.Map {
	if err != nil {
		return fiber.Map{"success": false, "message": err.Error()}
	}
	return fiber.Map{"success": true, "message": okMessage}
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
