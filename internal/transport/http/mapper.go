package http

import (
	"context"
	"encoding/json"

	"github.com/causerie/causerie-server/internal/core"
	"github.com/causerie/causerie-server/internal/proto"
	"github.com/causerie/causerie-server/internal/store"
)

// PingData lets an anonymous connection introduce itself with a
// client-generated id on its first ping.
type PingData struct {
	UserID   string `json:"user,omitempty"`
	Username string `json:"name,omitempty"`
}

// dispatch maps one inbound envelope onto a hub operation. A proto.Error
// return is a client mistake; an error return tears the connection down.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) (*proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypePing:
		if len(inbound.Data) > 0 {
			var ping PingData
			if err := json.Unmarshal(inbound.Data, &ping); err != nil {
				return nil, err
			}
			// Anonymous connections adopt the client-generated identity once
			// and only then enter the registry; the fields are never written
			// again after Connect.
			if client.UserID == "" && ping.UserID != "" {
				client.UserID = ping.UserID
				client.Username = ping.Username
				h.hub.Connect(ctx, client)
			}
		}
		if client.UserID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "identity is required"}, nil
		}
		h.hub.Ping(ctx, client)
		return nil, nil

	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, err
		}
		if join.Channel == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel is required"}, nil
		}
		h.hub.JoinChannel(ctx, client, join.Channel)
		return nil, nil

	case proto.InboundTypeLeave:
		var leave proto.JoinData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, err
		}
		if leave.Channel == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel is required"}, nil
		}
		h.hub.LeaveChannel(ctx, client, leave.Channel)
		return nil, nil

	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, err
		}
		if msg.Channel == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel is required"}, nil
		}
		h.hub.SendMessage(ctx, client, msg.Channel, msg.Text)
		return nil, nil

	case proto.InboundTypePrivate:
		var pm proto.PrivateData
		if err := json.Unmarshal(inbound.Data, &pm); err != nil {
			return nil, err
		}
		if pm.ToUserID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "recipient is required"}, nil
		}
		h.hub.SendPrivateMessage(ctx, client, pm.ToUserID, pm.ToUsername, pm.Text)
		return nil, nil

	case proto.InboundTypeRead:
		var read proto.ReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return nil, err
		}
		if read.FromUserID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "correspondent is required"}, nil
		}
		h.hub.MarkPrivateMessagesRead(ctx, client, read.FromUserID)
		return nil, nil

	default:
		return &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func eventMessage(msg *store.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:      msg.ID,
		Channel: msg.Channel,
		User:    msg.Username,
		Text:    msg.Body,
		TS:      msg.CreatedAt.Unix(),
	}
}

func eventPrivateMessage(msg *store.PrivateMessage) proto.EventPrivateMessage {
	return proto.EventPrivateMessage{
		ID:       msg.ID,
		FromUser: msg.FromUserID,
		FromName: msg.FromUsername,
		ToUser:   msg.ToUserID,
		ToName:   msg.ToUsername,
		Text:     msg.Body,
		TS:       msg.CreatedAt.Unix(),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "message",
			Data:  eventMessage(event.Message),
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "user_joined",
			Data: proto.EventUserJoined{
				Channel: event.Channel,
				User:    event.User,
				UserID:  event.UserID,
			},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "user_left",
			Data: proto.EventUserLeft{
				Channel: event.Channel,
				User:    event.User,
				UserID:  event.UserID,
			},
		}
	case core.EventUserList:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "user_list",
			Data: proto.EventUserList{
				Channel: event.Channel,
				Users:   event.Members,
			},
		}
	case core.EventUserStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "user_status",
			Data: proto.EventUserStatus{
				User:   event.User,
				UserID: event.UserID,
				Online: event.Online,
			},
		}
	case core.EventChannelMuted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "channel_muted",
			Data: proto.EventChannelMuted{
				Channel: event.Channel,
				Muted:   event.Muted,
			},
		}
	case core.EventMessageBlocked:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "message_blocked",
			Data:  proto.EventMessageBlocked{Channel: event.Channel},
		}
	case core.EventChannelNotFound:
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Error: &proto.Error{
				Code: core.ErrCodeChannelNotFound,
				Msg:  event.Channel,
			},
		}
	case core.EventHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, eventMessage(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "history",
			Data: proto.EventHistory{
				Channel:  event.Channel,
				Messages: messages,
			},
		}
	case core.EventPrivateMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "private_message",
			Data:  eventPrivateMessage(event.Private),
		}
	case core.EventPrivateSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "private_sent",
			Data:  eventPrivateMessage(event.Private),
		}
	case core.EventPrivateRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "private_read",
			Data: proto.EventPrivateRead{
				ReadBy: event.ReadBy,
				IDs:    event.ReadIDs,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
