package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/courierchat/internal/api/auth"
)

// listConversations returns the caller's conversations, most recent
// activity first.
func (s *Server) listConversations(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	convs, err := s.store.ConversationsFor(c.Request().Context(), ident.Key())
	if err != nil {
		log.Error().Err(err).Str("user", ident.Key()).Msg("list conversations failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list conversations"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"conversations": convs})
}

// listMessages pages backwards through one conversation's log. The caller
// must be a participant.
func (s *Server) listMessages(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	conv, err := s.store.Conversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		}
		log.Error().Err(err).Msg("load conversation failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load conversation"})
	}

	if !conv.HasParticipant(ident.Key()) {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	beforeSeq, _ := strconv.ParseInt(c.QueryParam("before_seq"), 10, 64)

	msgs, err := s.store.Messages(c.Request().Context(), conv.ID, limit, beforeSeq)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("list messages failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list messages"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"messages": msgs})
}
