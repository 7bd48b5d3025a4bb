package ledger

import "fmt"

// CreateTaskParams carries the verbatim-stored fields of a new task.
type CreateTaskParams struct {
	TaskID         uint32
	Title          Title
	ContentCID     CID
	RewardClips    uint64
	MaxClaims      uint16
	MinTier        uint8
	RequiredTaskID uint32
}

// CreateTask publishes a new task. Authority only. A task may name any
// other task as prerequisite, including one that does not exist yet, but
// never itself.
func CreateTask(st State, caller Identity, now int64, params CreateTaskParams) error {
	p, protocolAddr, err := loadProtocol(st)
	if err != nil {
		return err
	}
	if p.Authority != caller {
		return ErrUnauthorized
	}
	if params.RequiredTaskID != NoPrereqTaskID && params.RequiredTaskID == params.TaskID {
		return ErrInvalidTaskPrerequisite
	}

	addr, bump, err := TaskAddress(params.TaskID)
	if err != nil {
		return err
	}
	task := &Task{
		Bump:           bump,
		LayoutVersion:  LayoutV1,
		TaskID:         params.TaskID,
		Creator:        caller,
		Title:          params.Title,
		ContentCID:     params.ContentCID,
		RewardClips:    params.RewardClips,
		MaxClaims:      params.MaxClaims,
		CurrentClaims:  0,
		IsActive:       true,
		CreatedAt:      now,
		MinTier:        params.MinTier,
		RequiredTaskID: params.RequiredTaskID,
	}
	if err := st.Create(addr, task.Marshal()); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	if p.TotalTasks, err = addU32(p.TotalTasks, 1); err != nil {
		return err
	}
	if err := st.Put(protocolAddr, p.Marshal()); err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	return nil
}

// DeactivateTask flips a task's active flag off. Authority only. The
// record persists as a logical tombstone; deactivating an already
// inactive task converges to the same state and is not an error.
func DeactivateTask(st State, caller Identity, taskID uint32) error {
	p, _, err := loadProtocol(st)
	if err != nil {
		return err
	}
	if p.Authority != caller {
		return ErrUnauthorized
	}

	task, addr, err := loadTask(st, taskID)
	if err != nil {
		return err
	}
	task.IsActive = false
	if err := st.Put(addr, task.Marshal()); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}
