package connpool

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrConnect = errors.New("connect error")
	ErrClosed  = errors.New("connect pool closed")
)

type Closeable interface {
	Close()
}

// ConnectPool 构建基础的连接池
// 支持 最大连接数 配置，连接出错 (ErrConnect) 时直接关闭，不再放回池中
type ConnectPool struct {
	New      func() (Closeable, error)
	ch       chan Closeable
	sem      chan struct{}
	using    int32
	maxCount int32
	closed   int32
}

func NewConnectPool(maxCount int32, f func() (Closeable, error)) *ConnectPool {
	if maxCount <= 0 {
		maxCount = 1
	}
	return &ConnectPool{
		New:      f,
		maxCount: maxCount,
		ch:       make(chan Closeable, maxCount),
		sem:      make(chan struct{}, maxCount),
	}
}

func (c *ConnectPool) Call(f func(closeable Closeable) error) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClosed
	}

	// 同时使用的连接数不超过 maxCount
	c.sem <- struct{}{}
	atomic.AddInt32(&c.using, 1)
	defer func() {
		atomic.AddInt32(&c.using, -1)
		<-c.sem
	}()

	conn, err := c.get()
	if err != nil {
		return err
	}

	err = f(conn)

	if err != nil && errors.Is(err, ErrConnect) {
		conn.Close()
	} else if !c.put(conn) {
		conn.Close()
	}
	return err
}

// Using 当前正在被使用的连接数
func (c *ConnectPool) Using() int32 {
	return atomic.LoadInt32(&c.using)
}

// Idle 池中空闲的连接数
func (c *ConnectPool) Idle() int {
	return len(c.ch)
}

// Close 关闭池中所有空闲连接，之后的 Call 返回 ErrClosed
func (c *ConnectPool) Close() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	c.drain()
}

// drain 关闭池中所有空闲连接
func (c *ConnectPool) drain() {
	for {
		select {
		case conn := <-c.ch:
			conn.Close()
		default:
			return
		}
	}
}

// get 优先复用空闲连接，没有则新建
func (c *ConnectPool) get() (Closeable, error) {
	select {
	case conn := <-c.ch:
		return conn, nil
	default:
	}
	conn, err := c.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if conn == nil {
		return nil, ErrConnect
	}
	return conn, nil
}

// put 把一个连接放入连接池
func (c *ConnectPool) put(o Closeable) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return false
	}
	select {
	case c.ch <- o:
		// 放入之后池被关闭，Close 可能已经 drain 过，这里再 drain 一次
		if atomic.LoadInt32(&c.closed) == 1 {
			c.drain()
		}
		return true
	default:
		return false
	}
}
