package etcdutil

import "path"

// The directory layout a job uses in etcd:
//   /{job}/groups/{group}/status -> "published" once every member's
//                                    configuration has been written
//   /{job}/groups/{group}/tasks/{taskID}/config -> serialized per-task
//                                    configuration, written once
//   /{job}/driver -> id of the driver that owns the job

const (
	GroupsDir = "groups"
	TasksDir  = "tasks"
	ConfigKey = "config"
	Status    = "status"
	DriverKey = "driver"
	Published = "published"
)

func DriverPath(job string) string {
	return path.Join("/", job, DriverKey)
}

func GroupDir(job, group string) string {
	return path.Join("/", job, GroupsDir, group)
}

func GroupStatusPath(job, group string) string {
	return path.Join(GroupDir(job, group), Status)
}

func TaskDir(job, group string) string {
	return path.Join(GroupDir(job, group), TasksDir)
}

func TaskConfigPath(job, group, taskID string) string {
	return path.Join(TaskDir(job, group), taskID, ConfigKey)
}
