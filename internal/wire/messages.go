package wire

import (
	"fmt"

	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/queststate"
)

// Field numbers below follow each message's field order as listed in the
// wire format section of the interface definition, so independently
// generated protobuf code would line up byte-for-byte.

// MarshalAction encodes an Action{type, parameters}.
func MarshalAction(a questdef.Action) []byte {
	var buf []byte
	buf = AppendString(buf, 1, a.Type)
	buf = AppendStringMap(buf, 2, a.Parameters)
	return buf
}

// UnmarshalAction decodes an Action message.
func UnmarshalAction(data []byte) (questdef.Action, error) {
	a := questdef.Action{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return a, err
		}
		switch fieldNum {
		case 1:
			if a.Type, err = r.ReadString(); err != nil {
				return a, err
			}
		case 2:
			entry, err := r.ReadBytes()
			if err != nil {
				return a, err
			}
			if a.Parameters == nil {
				a.Parameters = make(map[string]string)
			}
			k, v, err := ReadStringMapEntry(entry)
			if err != nil {
				return a, err
			}
			a.Parameters[k] = v
		default:
			if err := r.SkipField(wireType); err != nil {
				return a, err
			}
		}
	}
	return a, nil
}

// MarshalTask encodes a Task{id, description, action_items}.
func MarshalTask(t questdef.Task) []byte {
	var buf []byte
	buf = AppendString(buf, 1, t.ID)
	buf = AppendString(buf, 2, t.Description)
	for _, a := range t.ActionItems {
		buf = AppendBytes(buf, 3, MarshalAction(a))
	}
	return buf
}

// UnmarshalTask decodes a Task message.
func UnmarshalTask(data []byte) (questdef.Task, error) {
	t := questdef.Task{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return t, err
		}
		switch fieldNum {
		case 1:
			if t.ID, err = r.ReadString(); err != nil {
				return t, err
			}
		case 2:
			if t.Description, err = r.ReadString(); err != nil {
				return t, err
			}
		case 3:
			raw, err := r.ReadBytes()
			if err != nil {
				return t, err
			}
			action, err := UnmarshalAction(raw)
			if err != nil {
				return t, err
			}
			t.ActionItems = append(t.ActionItems, action)
		default:
			if err := r.SkipField(wireType); err != nil {
				return t, err
			}
		}
	}
	return t, nil
}

// MarshalStep encodes a Step{id, description, tasks}.
func MarshalStep(s questdef.Step) []byte {
	var buf []byte
	buf = AppendString(buf, 1, s.ID)
	buf = AppendString(buf, 2, s.Description)
	for _, t := range s.Tasks {
		buf = AppendBytes(buf, 3, MarshalTask(t))
	}
	return buf
}

// UnmarshalStep decodes a Step message.
func UnmarshalStep(data []byte) (questdef.Step, error) {
	s := questdef.Step{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return s, err
		}
		switch fieldNum {
		case 1:
			if s.ID, err = r.ReadString(); err != nil {
				return s, err
			}
		case 2:
			if s.Description, err = r.ReadString(); err != nil {
				return s, err
			}
		case 3:
			raw, err := r.ReadBytes()
			if err != nil {
				return s, err
			}
			task, err := UnmarshalTask(raw)
			if err != nil {
				return s, err
			}
			s.Tasks = append(s.Tasks, task)
		default:
			if err := r.SkipField(wireType); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}

// MarshalConnection encodes a Connection{step_from, step_to}.
func MarshalConnection(c questdef.Connection) []byte {
	var buf []byte
	buf = AppendString(buf, 1, c.StepFrom)
	buf = AppendString(buf, 2, c.StepTo)
	return buf
}

// UnmarshalConnection decodes a Connection message.
func UnmarshalConnection(data []byte) (questdef.Connection, error) {
	c := questdef.Connection{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return c, err
		}
		switch fieldNum {
		case 1:
			if c.StepFrom, err = r.ReadString(); err != nil {
				return c, err
			}
		case 2:
			if c.StepTo, err = r.ReadString(); err != nil {
				return c, err
			}
		default:
			if err := r.SkipField(wireType); err != nil {
				return c, err
			}
		}
	}
	return c, nil
}

// MarshalQuestDefinition encodes a QuestDefinition{steps, connections}.
func MarshalQuestDefinition(d questdef.Definition) []byte {
	var buf []byte
	for _, s := range d.Steps {
		buf = AppendBytes(buf, 1, MarshalStep(s))
	}
	for _, c := range d.Connections {
		buf = AppendBytes(buf, 2, MarshalConnection(c))
	}
	return buf
}

// UnmarshalQuestDefinition decodes a QuestDefinition message.
func UnmarshalQuestDefinition(data []byte) (questdef.Definition, error) {
	d := questdef.Definition{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return d, err
		}
		switch fieldNum {
		case 1:
			raw, err := r.ReadBytes()
			if err != nil {
				return d, err
			}
			step, err := UnmarshalStep(raw)
			if err != nil {
				return d, err
			}
			d.Steps = append(d.Steps, step)
		case 2:
			raw, err := r.ReadBytes()
			if err != nil {
				return d, err
			}
			conn, err := UnmarshalConnection(raw)
			if err != nil {
				return d, err
			}
			d.Connections = append(d.Connections, conn)
		default:
			if err := r.SkipField(wireType); err != nil {
				return d, err
			}
		}
	}
	return d, nil
}

// MarshalQuest encodes a Quest{id,name,description,image_url,
// creator_address,definition,active,created_at}.
func MarshalQuest(q questdef.Quest) []byte {
	var buf []byte
	buf = AppendString(buf, 1, q.ID)
	buf = AppendString(buf, 2, q.Name)
	buf = AppendString(buf, 3, q.Description)
	buf = AppendString(buf, 4, q.ImageURL)
	buf = AppendString(buf, 5, q.CreatorAddress)
	buf = AppendBytes(buf, 6, MarshalQuestDefinition(q.Definition))
	buf = AppendBool(buf, 7, q.Active)
	buf = AppendInt64(buf, 8, q.CreatedAt)
	return buf
}

// UnmarshalQuest decodes a Quest message.
func UnmarshalQuest(data []byte) (questdef.Quest, error) {
	q := questdef.Quest{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return q, err
		}
		switch fieldNum {
		case 1:
			if q.ID, err = r.ReadString(); err != nil {
				return q, err
			}
		case 2:
			if q.Name, err = r.ReadString(); err != nil {
				return q, err
			}
		case 3:
			if q.Description, err = r.ReadString(); err != nil {
				return q, err
			}
		case 4:
			if q.ImageURL, err = r.ReadString(); err != nil {
				return q, err
			}
		case 5:
			if q.CreatorAddress, err = r.ReadString(); err != nil {
				return q, err
			}
		case 6:
			raw, err := r.ReadBytes()
			if err != nil {
				return q, err
			}
			if q.Definition, err = UnmarshalQuestDefinition(raw); err != nil {
				return q, err
			}
		case 7:
			v, err := r.ReadVarint()
			if err != nil {
				return q, err
			}
			q.Active = v != 0
		case 8:
			v, err := r.ReadVarint()
			if err != nil {
				return q, err
			}
			q.CreatedAt = int64(v)
		default:
			if err := r.SkipField(wireType); err != nil {
				return q, err
			}
		}
	}
	return q, nil
}

// MarshalEvent encodes an Event{id, address, action}.
func MarshalEvent(e questdef.Event) []byte {
	var buf []byte
	buf = AppendString(buf, 1, e.ID)
	buf = AppendString(buf, 2, e.Address)
	buf = AppendBytes(buf, 3, MarshalAction(e.Action))
	return buf
}

// UnmarshalEvent decodes an Event message.
func UnmarshalEvent(data []byte) (questdef.Event, error) {
	e := questdef.Event{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return e, err
		}
		switch fieldNum {
		case 1:
			if e.ID, err = r.ReadString(); err != nil {
				return e, err
			}
		case 2:
			if e.Address, err = r.ReadString(); err != nil {
				return e, err
			}
		case 3:
			raw, err := r.ReadBytes()
			if err != nil {
				return e, err
			}
			if e.Action, err = UnmarshalAction(raw); err != nil {
				return e, err
			}
		default:
			if err := r.SkipField(wireType); err != nil {
				return e, err
			}
		}
	}
	return e, nil
}

// MarshalEventRequest encodes an EventRequest{action}.
func MarshalEventRequest(action questdef.Action) []byte {
	return AppendBytes(nil, 1, MarshalAction(action))
}

// UnmarshalEventRequest decodes an EventRequest message.
func UnmarshalEventRequest(data []byte) (questdef.Action, error) {
	r := NewReader(data)
	var action questdef.Action
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return action, err
		}
		if fieldNum == 1 {
			raw, err := r.ReadBytes()
			if err != nil {
				return action, err
			}
			if action, err = UnmarshalAction(raw); err != nil {
				return action, err
			}
			continue
		}
		if err := r.SkipField(wireType); err != nil {
			return action, err
		}
	}
	return action, nil
}

// MarshalStepContent encodes a StepContent{to_dos, tasks_completed}.
func MarshalStepContent(c queststate.StepContent) []byte {
	var buf []byte
	for _, t := range c.ToDos {
		buf = AppendBytes(buf, 1, MarshalTask(t))
	}
	for _, t := range c.TasksCompleted {
		buf = AppendBytes(buf, 2, MarshalTask(t))
	}
	return buf
}

// UnmarshalStepContent decodes a StepContent message.
func UnmarshalStepContent(data []byte) (queststate.StepContent, error) {
	c := queststate.StepContent{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return c, err
		}
		switch fieldNum {
		case 1:
			raw, err := r.ReadBytes()
			if err != nil {
				return c, err
			}
			task, err := UnmarshalTask(raw)
			if err != nil {
				return c, err
			}
			c.ToDos = append(c.ToDos, task)
		case 2:
			raw, err := r.ReadBytes()
			if err != nil {
				return c, err
			}
			task, err := UnmarshalTask(raw)
			if err != nil {
				return c, err
			}
			c.TasksCompleted = append(c.TasksCompleted, task)
		default:
			if err := r.SkipField(wireType); err != nil {
				return c, err
			}
		}
	}
	return c, nil
}

// stepEntry is the {key: StepId, value: StepContent} submessage used to
// encode QuestState.current_steps, a map<string, StepContent>.
func marshalStepEntry(key string, content queststate.StepContent) []byte {
	var buf []byte
	buf = AppendString(buf, 1, key)
	buf = AppendBytes(buf, 2, MarshalStepContent(content))
	return buf
}

func unmarshalStepEntry(data []byte) (string, queststate.StepContent, error) {
	r := NewReader(data)
	var key string
	var content queststate.StepContent
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return "", content, err
		}
		switch fieldNum {
		case 1:
			if key, err = r.ReadString(); err != nil {
				return "", content, err
			}
		case 2:
			raw, err := r.ReadBytes()
			if err != nil {
				return "", content, err
			}
			if content, err = UnmarshalStepContent(raw); err != nil {
				return "", content, err
			}
		default:
			if err := r.SkipField(wireType); err != nil {
				return "", content, err
			}
		}
	}
	return key, content, nil
}

// MarshalQuestState encodes a QuestState{current_steps, steps_left,
// required_steps, steps_completed}.
func MarshalQuestState(s queststate.State) []byte {
	var buf []byte
	for stepID, content := range s.CurrentSteps {
		buf = AppendBytes(buf, 1, marshalStepEntry(stepID, content))
	}
	buf = AppendUint32(buf, 2, s.StepsLeft)
	for _, id := range s.RequiredSteps {
		buf = AppendString(buf, 3, id)
	}
	for _, id := range s.StepsCompleted {
		buf = AppendString(buf, 4, id)
	}
	return buf
}

// UnmarshalQuestState decodes a QuestState message.
func UnmarshalQuestState(data []byte) (queststate.State, error) {
	s := queststate.State{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return s, err
		}
		switch fieldNum {
		case 1:
			raw, err := r.ReadBytes()
			if err != nil {
				return s, err
			}
			stepID, content, err := unmarshalStepEntry(raw)
			if err != nil {
				return s, err
			}
			if s.CurrentSteps == nil {
				s.CurrentSteps = make(map[string]queststate.StepContent)
			}
			s.CurrentSteps[stepID] = content
		case 2:
			v, err := r.ReadVarint()
			if err != nil {
				return s, err
			}
			s.StepsLeft = uint32(v)
		case 3:
			id, err := r.ReadString()
			if err != nil {
				return s, err
			}
			s.RequiredSteps = append(s.RequiredSteps, id)
		case 4:
			id, err := r.ReadString()
			if err != nil {
				return s, err
			}
			s.StepsCompleted = append(s.StepsCompleted, id)
		default:
			if err := r.SkipField(wireType); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}

// MarshalQuestInstance encodes a QuestInstance{id, quest_id, user_address,
// start_timestamp}.
func MarshalQuestInstance(qi questdef.QuestInstance) []byte {
	var buf []byte
	buf = AppendString(buf, 1, qi.ID)
	buf = AppendString(buf, 2, qi.QuestID)
	buf = AppendString(buf, 3, qi.UserAddress)
	buf = AppendInt64(buf, 4, qi.StartTimestamp)
	return buf
}

// UnmarshalQuestInstance decodes a QuestInstance message.
func UnmarshalQuestInstance(data []byte) (questdef.QuestInstance, error) {
	qi := questdef.QuestInstance{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return qi, err
		}
		switch fieldNum {
		case 1:
			if qi.ID, err = r.ReadString(); err != nil {
				return qi, err
			}
		case 2:
			if qi.QuestID, err = r.ReadString(); err != nil {
				return qi, err
			}
		case 3:
			if qi.UserAddress, err = r.ReadString(); err != nil {
				return qi, err
			}
		case 4:
			v, err := r.ReadVarint()
			if err != nil {
				return qi, err
			}
			qi.StartTimestamp = int64(v)
		default:
			if err := r.SkipField(wireType); err != nil {
				return qi, err
			}
		}
	}
	return qi, nil
}

// UserUpdate variant tags. Exactly one of these is set per message, matching
// the one_of{QuestStateUpdate, NewQuestStarted, QuestCompleted, EventIgnored}
// field layout.
const (
	UserUpdateQuestStateUpdate = 1
	UserUpdateNewQuestStarted  = 2
	UserUpdateQuestCompleted   = 3
	UserUpdateEventIgnored     = 4
)

// QuestStateUpdate is the UserUpdate variant published whenever an event
// changes an instance's derived state.
type QuestStateUpdate struct {
	InstanceID string
	QuestState queststate.State
	EventID    string
}

// UserUpdate is a tagged union over the four real-time notification kinds a
// subscriber can receive. Exactly one field is populated, selected by Kind.
type UserUpdate struct {
	Kind             int
	QuestStateUpdate QuestStateUpdate
	NewQuestStarted  questdef.QuestInstance
	QuestCompletedID string
	EventIgnoredID   string
}

// MarshalUserUpdate encodes a UserUpdate in whichever variant u.Kind names.
func MarshalUserUpdate(u UserUpdate) ([]byte, error) {
	switch u.Kind {
	case UserUpdateQuestStateUpdate:
		var inner []byte
		inner = AppendString(inner, 1, u.QuestStateUpdate.InstanceID)
		inner = AppendBytes(inner, 2, MarshalQuestState(u.QuestStateUpdate.QuestState))
		inner = AppendString(inner, 3, u.QuestStateUpdate.EventID)
		return AppendBytes(nil, UserUpdateQuestStateUpdate, inner), nil
	case UserUpdateNewQuestStarted:
		return AppendBytes(nil, UserUpdateNewQuestStarted, MarshalQuestInstance(u.NewQuestStarted)), nil
	case UserUpdateQuestCompleted:
		inner := AppendString(nil, 1, u.QuestCompletedID)
		return AppendBytes(nil, UserUpdateQuestCompleted, inner), nil
	case UserUpdateEventIgnored:
		inner := AppendString(nil, 1, u.EventIgnoredID)
		return AppendBytes(nil, UserUpdateEventIgnored, inner), nil
	default:
		return nil, fmt.Errorf("wire: unknown UserUpdate kind %d", u.Kind)
	}
}

// UnmarshalUserUpdate decodes a UserUpdate message.
func UnmarshalUserUpdate(data []byte) (UserUpdate, error) {
	r := NewReader(data)
	var u UserUpdate
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return u, err
		}
		switch fieldNum {
		case UserUpdateQuestStateUpdate:
			raw, err := r.ReadBytes()
			if err != nil {
				return u, err
			}
			inner := NewReader(raw)
			var qs QuestStateUpdate
			for !inner.Done() {
				fn, wt, err := inner.ReadTag()
				if err != nil {
					return u, err
				}
				switch fn {
				case 1:
					if qs.InstanceID, err = inner.ReadString(); err != nil {
						return u, err
					}
				case 2:
					raw, err := inner.ReadBytes()
					if err != nil {
						return u, err
					}
					if qs.QuestState, err = UnmarshalQuestState(raw); err != nil {
						return u, err
					}
				case 3:
					if qs.EventID, err = inner.ReadString(); err != nil {
						return u, err
					}
				default:
					if err := inner.SkipField(wt); err != nil {
						return u, err
					}
				}
			}
			u.Kind = UserUpdateQuestStateUpdate
			u.QuestStateUpdate = qs
		case UserUpdateNewQuestStarted:
			raw, err := r.ReadBytes()
			if err != nil {
				return u, err
			}
			qi, err := UnmarshalQuestInstance(raw)
			if err != nil {
				return u, err
			}
			u.Kind = UserUpdateNewQuestStarted
			u.NewQuestStarted = qi
		case UserUpdateQuestCompleted:
			raw, err := r.ReadBytes()
			if err != nil {
				return u, err
			}
			inner := NewReader(raw)
			for !inner.Done() {
				fn, wt, err := inner.ReadTag()
				if err != nil {
					return u, err
				}
				if fn == 1 {
					if u.QuestCompletedID, err = inner.ReadString(); err != nil {
						return u, err
					}
					continue
				}
				if err := inner.SkipField(wt); err != nil {
					return u, err
				}
			}
			u.Kind = UserUpdateQuestCompleted
		case UserUpdateEventIgnored:
			raw, err := r.ReadBytes()
			if err != nil {
				return u, err
			}
			inner := NewReader(raw)
			for !inner.Done() {
				fn, wt, err := inner.ReadTag()
				if err != nil {
					return u, err
				}
				if fn == 1 {
					if u.EventIgnoredID, err = inner.ReadString(); err != nil {
						return u, err
					}
					continue
				}
				if err := inner.SkipField(wt); err != nil {
					return u, err
				}
			}
			u.Kind = UserUpdateEventIgnored
		default:
			if err := r.SkipField(wireType); err != nil {
				return u, err
			}
		}
	}
	return u, nil
}

// StartQuestRequest{quest_id}.
func MarshalStartQuestRequest(questID string) []byte {
	return AppendString(nil, 1, questID)
}

func UnmarshalStartQuestRequest(data []byte) (string, error) {
	r := NewReader(data)
	var questID string
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return "", err
		}
		if fieldNum == 1 {
			if questID, err = r.ReadString(); err != nil {
				return "", err
			}
			continue
		}
		if err := r.SkipField(wireType); err != nil {
			return "", err
		}
	}
	return questID, nil
}

// StartQuestResponse result kinds, one_of{Accepted(instance_id), InvalidQuest,
// NotUuid, QuestAlreadyStarted, InternalServerError}.
const (
	StartQuestAccepted            = 1
	StartQuestInvalidQuest        = 2
	StartQuestNotUuid             = 3
	StartQuestAlreadyStarted      = 4
	StartQuestInternalServerError = 5
)

type StartQuestResponse struct {
	Kind       int
	InstanceID string
}

func MarshalStartQuestResponse(r StartQuestResponse) []byte {
	switch r.Kind {
	case StartQuestAccepted:
		return AppendBytes(nil, StartQuestAccepted, AppendString(nil, 1, r.InstanceID))
	default:
		return appendEmptyMessage(nil, r.Kind)
	}
}

func UnmarshalStartQuestResponse(data []byte) (StartQuestResponse, error) {
	resp := StartQuestResponse{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return resp, err
		}
		if wireType != 2 {
			if err := r.SkipField(wireType); err != nil {
				return resp, err
			}
			continue
		}
		raw, err := r.ReadBytes()
		if err != nil {
			return resp, err
		}
		resp.Kind = fieldNum
		if fieldNum == StartQuestAccepted && len(raw) > 0 {
			inner := NewReader(raw)
			for !inner.Done() {
				fn, wt, err := inner.ReadTag()
				if err != nil {
					return resp, err
				}
				if fn == 1 {
					if resp.InstanceID, err = inner.ReadString(); err != nil {
						return resp, err
					}
					continue
				}
				if err := inner.SkipField(wt); err != nil {
					return resp, err
				}
			}
		}
	}
	return resp, nil
}

// AbortQuestRequest{quest_instance_id}.
func MarshalAbortQuestRequest(instanceID string) []byte {
	return AppendString(nil, 1, instanceID)
}

func UnmarshalAbortQuestRequest(data []byte) (string, error) {
	r := NewReader(data)
	var instanceID string
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return "", err
		}
		if fieldNum == 1 {
			if instanceID, err = r.ReadString(); err != nil {
				return "", err
			}
			continue
		}
		if err := r.SkipField(wireType); err != nil {
			return "", err
		}
	}
	return instanceID, nil
}

// AbortQuestResponse / EventResponse result kinds share the same
// accepted-or-named-error shape as StartQuestResponse.
const (
	AbortQuestAccepted              = 1
	AbortQuestNotFoundQuestInstance = 2
	AbortQuestNotOwner              = 3
	AbortQuestNotUuid               = 4
	AbortQuestInternalServerError   = 5
)

// MarshalAbortQuestResponse encodes a bare result-kind tag with no payload.
func MarshalAbortQuestResponse(kind int) []byte {
	return appendEmptyMessage(nil, kind)
}

// appendEmptyMessage appends fieldNum as a length-delimited field of length
// zero. AppendBytes omits empty payloads, which would drop a one_of variant
// that carries no data.
func appendEmptyMessage(buf []byte, fieldNum int) []byte {
	return AppendVarint(AppendVarint(buf, uint64(fieldNum)<<3|2), 0)
}

func UnmarshalAbortQuestResponse(data []byte) (int, error) {
	r := NewReader(data)
	kind := 0
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return 0, err
		}
		if wireType == 2 {
			if _, err := r.ReadBytes(); err != nil {
				return 0, err
			}
			kind = fieldNum
			continue
		}
		if err := r.SkipField(wireType); err != nil {
			return 0, err
		}
	}
	return kind, nil
}

// EventResponse result kinds, one_of{AcceptedEventId(string), IgnoredEvent,
// InternalServerError}.
const (
	EventResponseAcceptedEventID      = 1
	EventResponseIgnoredEvent         = 2
	EventResponseInternalServerError = 3
)

type EventResponse struct {
	Kind    int
	EventID string
}

func MarshalEventResponse(r EventResponse) []byte {
	switch r.Kind {
	case EventResponseAcceptedEventID:
		return AppendBytes(nil, EventResponseAcceptedEventID, AppendString(nil, 1, r.EventID))
	default:
		return appendEmptyMessage(nil, r.Kind)
	}
}

func UnmarshalEventResponse(data []byte) (EventResponse, error) {
	resp := EventResponse{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return resp, err
		}
		if wireType != 2 {
			if err := r.SkipField(wireType); err != nil {
				return resp, err
			}
			continue
		}
		raw, err := r.ReadBytes()
		if err != nil {
			return resp, err
		}
		resp.Kind = fieldNum
		if fieldNum == EventResponseAcceptedEventID && len(raw) > 0 {
			inner := NewReader(raw)
			for !inner.Done() {
				fn, wt, err := inner.ReadTag()
				if err != nil {
					return resp, err
				}
				if fn == 1 {
					if resp.EventID, err = inner.ReadString(); err != nil {
						return resp, err
					}
					continue
				}
				if err := inner.SkipField(wt); err != nil {
					return resp, err
				}
			}
		}
	}
	return resp, nil
}

// Envelope is the multiplexing frame every binary WebSocket message is sent
// as once the handshake completes. Port names a request/response stream
// (e.g. "quests.start_quest", "quests.subscribe"); RequestID lets the
// caller match a response (or a stream of pushed frames, for Subscribe)
// back to the request that opened it. A frame with Error set carries no
// Payload.
type Envelope struct {
	Port      string
	RequestID uint32
	Payload   []byte
	Error     string
}

// MarshalEnvelope encodes an Envelope{port, request_id, payload, error}.
func MarshalEnvelope(e Envelope) []byte {
	var buf []byte
	buf = AppendString(buf, 1, e.Port)
	buf = AppendUint32(buf, 2, e.RequestID)
	buf = AppendBytes(buf, 3, e.Payload)
	buf = AppendString(buf, 4, e.Error)
	return buf
}

// UnmarshalEnvelope decodes an Envelope message.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	e := Envelope{}
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return e, err
		}
		switch fieldNum {
		case 1:
			if e.Port, err = r.ReadString(); err != nil {
				return e, err
			}
		case 2:
			v, err := r.ReadVarint()
			if err != nil {
				return e, err
			}
			e.RequestID = uint32(v)
		case 3:
			if e.Payload, err = r.ReadBytes(); err != nil {
				return e, err
			}
		case 4:
			if e.Error, err = r.ReadString(); err != nil {
				return e, err
			}
		default:
			if err := r.SkipField(wireType); err != nil {
				return e, err
			}
		}
	}
	return e, nil
}

// MarshalQuestInstanceList encodes a repeated QuestInstance (field 1) list,
// used by the get_all_quests RPC port to return the caller's own instances.
func MarshalQuestInstanceList(instances []questdef.QuestInstance) []byte {
	var buf []byte
	for _, qi := range instances {
		buf = AppendBytes(buf, 1, MarshalQuestInstance(qi))
	}
	return buf
}

// UnmarshalQuestInstanceList decodes a repeated QuestInstance list.
func UnmarshalQuestInstanceList(data []byte) ([]questdef.QuestInstance, error) {
	var instances []questdef.QuestInstance
	r := NewReader(data)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return nil, err
		}
		if fieldNum != 1 {
			if err := r.SkipField(wireType); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		qi, err := UnmarshalQuestInstance(raw)
		if err != nil {
			return nil, err
		}
		instances = append(instances, qi)
	}
	return instances, nil
}
