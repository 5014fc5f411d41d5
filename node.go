package canopen

import "github.com/jaster-prj/canopen-console/logger"

// Node is a canopen node
type Node struct {
	// Each node has an id, which is ArbitrationID & 0x7F
	ID int

	Network   *Network
	ObjectDic *ObjectDictionary

	SDOClient   *SDOClient
	SDOTransfer *SDOTransfer
	NMTMaster   *NMTMaster
	Guarding    *NodeGuardingController

	logger logger.Logger
}

var _ INode = (*Node)(nil)

func NewNode(id int, network *Network, objectDic *ObjectDictionary) *Node {
	node := &Node{
		ID:        id,
		Network:   network,
		ObjectDic: objectDic,
		logger:    logger.With("node", id),
	}

	return node
}

// GetId returns Node ID
func (node *Node) GetId() int {
	return node.ID
}

// FindName gets a dictionary entry by parameter name
func (node *Node) FindName(name string) *DictionaryEntry {
	if node.ObjectDic == nil {
		return nil
	}
	return node.ObjectDic.FindName(name)
}

// Send sends Frame with arbitration ID by connected network
func (node *Node) Send(arbID uint32, data []byte) error {
	if node.Network == nil {
		return ErrNoNetwork
	}
	return node.Network.Send(arbID, data)
}

// AcquireFramesChanFromNetwork gets new Channel for given FilterFunc
func (node *Node) AcquireFramesChanFromNetwork(filterFunc networkFramesChanFilterFunc) *NetworkFramesChan {
	if node.Network == nil {
		return nil
	}
	return node.Network.AcquireFramesChan(filterFunc)
}

// ReleaseFramesChanFromNetwork free channel with given id from network
func (node *Node) ReleaseFramesChanFromNetwork(id string) {
	if node.Network != nil {
		node.Network.ReleaseFramesChan(id)
	}
}

// SetNetwork set node.Network to the desired network
func (node *Node) SetNetwork(network *Network) {
	node.Network = network
}

// SetObjectDic set node.ObjectDic to the desired ObjectDic
func (node *Node) SetObjectDic(objectDic *ObjectDictionary) {
	node.ObjectDic = objectDic
}

// SetLogger replaces the logger handed to the services created by Init
func (node *Node) SetLogger(l logger.Logger) {
	node.logger = l.With("node", node.ID)
}

// Init creates the sdo client and transfer, the nmt master and the
// node guarding controller, and starts listening for heartbeats
func (node *Node) Init() error {
	if node.ObjectDic == nil {
		objectDic, err := DefaultDictionary()
		if err != nil {
			return err
		}
		node.ObjectDic = objectDic
	}

	node.SDOClient = NewSDOClient(node)
	node.SDOTransfer = NewSDOTransfer(node.ObjectDic, node.SDOClient)
	node.NMTMaster = NewNMTMaster(node, node.logger)
	node.Guarding = NewNodeGuardingController(node.SDOTransfer, node.NMTMaster, node.logger)

	return node.NMTMaster.ListenForHeartbeat()
}

// Stop node
func (node *Node) Stop() {
	if node.NMTMaster == nil {
		return
	}
	node.NMTMaster.StopNodeGuarding()
	node.NMTMaster.UnlistenForHeartbeat()
}
