package chat

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout 投递阶段：一条持久化消息对 N 条目标连接各产生一次投递。
// 单消费协程保证同一发送方顺次提交的消息按提交顺序进入各连接的发送队列；
// 对单条连接的入队是非阻塞的，慢客户端不拖累其他目标。
type Fanout struct {
	jobs   chan fanoutJob
	onFail func(c *Client)
}

// NewFanout queue 是待投递消息的缓冲上限；onFail 在某条连接的
// 发送队列已满（视为死连接）时回调，由调用方注销并关闭。
func NewFanout(queue int, onFail func(c *Client)) *Fanout {
	f := &Fanout{
		jobs:   make(chan fanoutJob, queue),
		onFail: onFail,
	}
	go f.loop()
	return f
}

func (f *Fanout) loop() {
	for job := range f.jobs {
		for _, c := range job.conns {
			select {
			case c.Send <- job.payload:
			case <-c.Done():
				// 连接已在关闭流程里，跳过
			default:
				if f.onFail != nil {
					f.onFail(c)
				}
			}
		}
	}
}

// Broadcast 把一份已编码的负载投给一组连接。目标为空直接返回。
func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}

// Close 停止消费协程；排队中的任务会先投完。
func (f *Fanout) Close() {
	close(f.jobs)
}
