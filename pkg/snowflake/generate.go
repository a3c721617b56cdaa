package snowflake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once

	errInvalidMachineID   = errors.New("invalid snowflake machine id")
	errInvalidDataCenter  = errors.New("invalid snowflake datacenter id")
	errGeneratorUninitial = errors.New("snowflake generator is not initialized")
)

// Init 初始化节点，datacenterID 和 machineID 都是 0~31，拼成 10 位 node id
func Init(machineID, dataCenterID int64) error {
	var initErr error

	once.Do(func() {
		if machineID < 0 || machineID > 31 {
			initErr = errInvalidMachineID
			return
		}
		if dataCenterID < 0 || dataCenterID > 31 {
			initErr = errInvalidDataCenter
			return
		}

		var err error
		node, err = snowflake.NewNode((dataCenterID << 5) | machineID)
		if err != nil {
			initErr = err
		}
	})

	return initErr
}

func NextID() (int64, error) {
	if node == nil {
		return 0, errGeneratorUninitial
	}

	return node.Generate().Int64(), nil
}

// NextMessageID 生成带业务前缀的消息 ID，如 fork_1789...
func NextMessageID(prefix string) (string, error) {
	id, err := NextID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%d", prefix, id), nil
}
